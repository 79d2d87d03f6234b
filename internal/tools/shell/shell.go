// Package shell implements a reference Tool running commands via
// os/exec, grounded on the teacher's internal/tools/exec process manager
// trimmed to a single synchronous invocation per spec §4.16.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/tools"
)

// DefaultTimeout bounds a command's runtime when the caller doesn't
// supply one.
const DefaultTimeout = 30 * time.Second

// MaxOutputBytes caps how much combined stdout/stderr is returned,
// matching the teacher's limitedBuffer pattern.
const MaxOutputBytes = 64000

// Tool runs a shell command through /bin/sh -c and returns its combined
// output. It requires OPERATOR (spec §4.16).
type Tool struct {
	workDir string
}

// New constructs a shell Tool rooted at workDir (commands run with this
// as their working directory).
func New(workDir string) *Tool {
	return &Tool{workDir: workDir}
}

func (t *Tool) Name() string        { return "shell" }
func (t *Tool) Description() string { return "Run a shell command and return its combined stdout/stderr." }

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "The shell command to run."},
			"timeout_seconds": map[string]any{"type": "integer", "description": "Optional timeout override, in seconds."},
		},
		"required": []any{"command"},
	}
}

func (t *Tool) RequiredPermission() model.PermissionLevel { return model.PermissionOperator }

func (t *Tool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return tools.Result{Success: false, Error: "shell: \"command\" is required"}, nil
	}

	timeout := DefaultTimeout
	if v, ok := args["timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = t.workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.String()
	if len(output) > MaxOutputBytes {
		output = output[:MaxOutputBytes] + "\n...[truncated]"
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return tools.Result{Success: false, Output: output, Error: fmt.Sprintf("command timed out after %s", timeout)}, nil
		}
		return tools.Result{Success: false, Output: output, Error: err.Error()}, nil
	}
	return tools.Result{Success: true, Output: output}, nil
}

func (t *Tool) Cleanup() error { return nil }
