// Package delegate implements a reference Tool that shells out to a
// configured CLI binary, modeling the spec's "delegated CLI" tool —
// grounded on the same os/exec pattern as internal/tools/shell but
// fixed to one operator-configured command rather than an arbitrary
// shell string.
package delegate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/tools"
)

// DefaultTimeout bounds how long the delegated binary may run.
const DefaultTimeout = 60 * time.Second

// Tool invokes a single fixed binary with caller-supplied arguments. It
// requires OPERATOR.
type Tool struct {
	name    string
	binary  string
	workDir string
}

// New constructs a delegate Tool named name, invoking binary with any
// arguments given at call time.
func New(name, binary, workDir string) *Tool {
	return &Tool{name: name, binary: binary, workDir: workDir}
}

func (t *Tool) Name() string { return t.name }

func (t *Tool) Description() string {
	return fmt.Sprintf("Delegate work to the %q CLI, passing through the given arguments.", t.binary)
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"args": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Arguments to pass to the delegated binary.",
			},
		},
		"required": []any{"args"},
	}
}

func (t *Tool) RequiredPermission() model.PermissionLevel { return model.PermissionOperator }

func (t *Tool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	rawArgs, _ := args["args"].([]any)
	cliArgs := make([]string, 0, len(rawArgs))
	for _, a := range rawArgs {
		s, ok := a.(string)
		if !ok {
			return tools.Result{Success: false, Error: "delegate: \"args\" must be an array of strings"}, nil
		}
		cliArgs = append(cliArgs, s)
	}

	runCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.binary, cliArgs...)
	cmd.Dir = t.workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return tools.Result{Success: false, Output: out.String(), Error: err.Error()}, nil
	}
	return tools.Result{Success: true, Output: out.String()}, nil
}

func (t *Tool) Cleanup() error { return nil }
