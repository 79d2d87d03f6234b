// Package tools defines the capability interface concrete tools satisfy
// and the bounded tool-use loop (Executor) that drives an LLM provider
// against a permission-filtered subset of them.
package tools

import (
	"context"

	"github.com/shannon-ai/shannon/internal/model"
)

// Tool is the capability interface every tool body (shell, browser, PTY,
// delegated CLI, memory, planner) satisfies. The core depends only on
// this interface; concrete bodies are reference implementations.
type Tool interface {
	Name() string
	Description() string
	// Parameters is a JSON-schema object describing Execute's args.
	Parameters() map[string]any
	RequiredPermission() model.PermissionLevel
	Execute(ctx context.Context, args map[string]any) (Result, error)
	// Cleanup releases any resources the tool holds (browser contexts,
	// subprocess handles). Called once at shutdown.
	Cleanup() error
}

// Result is the outcome of one Execute call, prior to being wrapped into
// a model.ToolResult for the conversation log.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// Registry maps tool name to implementation and supports permission
// filtering for a given caller.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t, keyed by t.Name(). A later call with the same name
// replaces the earlier one — used by the composition root to append the
// "plan" tool after the planner is constructed (spec §9's cyclic-wiring
// note).
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// FilterByPermission returns every registered tool whose
// RequiredPermission is at most level, the exact subset the system
// prompt and the tool-use loop are allowed to expose (spec §3's tool
// exposure invariant).
func (r *Registry) FilterByPermission(level model.PermissionLevel) []Tool {
	var out []Tool
	for _, t := range r.tools {
		if t.RequiredPermission() <= level {
			out = append(out, t)
		}
	}
	return out
}

// All returns every registered tool, unfiltered.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// CloseAll calls Cleanup on every registered tool, collecting the first
// error encountered (if any) but attempting every tool regardless.
func (r *Registry) CloseAll() error {
	var firstErr error
	for _, t := range r.tools {
		if err := t.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
