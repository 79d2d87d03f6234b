package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shannon-ai/shannon/internal/llm"
	"github.com/shannon-ai/shannon/internal/model"
)

// MaxIterations bounds the tool-use loop (spec §4.6 step 4).
const MaxIterations = 10

// WarningMarker is appended to the final content when the loop exhausts
// MaxIterations without the provider reaching end_turn.
const WarningMarker = "\n\n[shannon: tool-use loop stopped after reaching the iteration limit]"

// Executor drives a bounded LLM <-> tool exchange for a single user
// turn. A new Executor is constructed per invocation; it holds no state
// across calls.
type Executor struct {
	provider llm.Provider
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor constructs an Executor over provider and the tool registry
// it may invoke.
func NewExecutor(provider llm.Provider, registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{provider: provider, registry: registry, logger: logger}
}

// Run executes the tool-use loop described in spec §4.6: call the
// provider, execute any tool calls (in parallel), append the exchange to
// messages, and repeat until end_turn or MaxIterations. userLevel gates
// tools a second time inside the loop as a redundant defense even though
// tools is already permission-filtered.
func (e *Executor) Run(ctx context.Context, system string, messages []llm.Message, tools []ToolSpecOf, userLevel model.PermissionLevel, maxTokens int, temperature float32) (string, error) {
	specs := make([]llm.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	}

	for iter := 0; iter < MaxIterations; iter++ {
		resp, err := e.provider.Complete(ctx, llm.Request{
			System:      system,
			Messages:    messages,
			Tools:       specs,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		if err != nil {
			return "", fmt.Errorf("tools: provider complete: %w", err)
		}

		if resp.StopReason != "tool_use" || len(resp.ToolCalls) == 0 {
			return resp.Text, nil
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls})
		results := e.executeAll(ctx, resp.ToolCalls, userLevel)
		messages = append(messages, llm.Message{Role: "user", ToolResults: results})
	}

	// Exhausted the bound: return whatever content the last response
	// carried, the assistant's own recovery text if any, plus a marker.
	last, err := e.provider.Complete(ctx, llm.Request{System: system, Messages: messages, MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		return WarningMarker, nil
	}
	return last.Text + WarningMarker, nil
}

// executeAll runs every tool call concurrently (they are treated as
// independent side effects per spec §4.6 step 2) and returns results in
// the same order as calls.
func (e *Executor) executeAll(ctx context.Context, calls []model.ToolCall, userLevel model.PermissionLevel) []model.ToolResult {
	results := make([]model.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			results[i] = e.executeOne(ctx, call, userLevel)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (e *Executor) executeOne(ctx context.Context, call model.ToolCall, userLevel model.PermissionLevel) model.ToolResult {
	t, ok := e.registry.Get(call.Name)
	if !ok {
		return model.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	if userLevel < t.RequiredPermission() {
		return model.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("tool %q requires %s", call.Name, t.RequiredPermission())}
	}
	if err := ValidateArguments(t, call.Arguments); err != nil {
		return model.ToolResult{ToolCallID: call.ID, Success: false, Error: err.Error()}
	}

	result, err := e.runCaught(ctx, t, call.Arguments)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return model.ToolResult{ToolCallID: call.ID, Success: false, Error: err.Error()}
	}
	return model.ToolResult{ToolCallID: call.ID, Success: result.Success, Output: result.Output, Error: result.Error}
}

// runCaught calls t.Execute, converting a panic into an error so one
// misbehaving tool body never takes down the pipeline (spec §4.6 step 5).
func (e *Executor) runCaught(ctx context.Context, t Tool, args map[string]any) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()
	return t.Execute(ctx, args)
}

// ToolSpecOf is the minimal read-only view the Executor needs of a Tool
// to build the provider-facing schema, satisfied by Tool itself.
type ToolSpecOf interface {
	Name() string
	Description() string
	Parameters() map[string]any
}
