// Package llm abstracts over concrete LLM backends (Anthropic, OpenAI,
// Bedrock) behind one Provider interface, and supplies a ReAct-style
// fallback for backends or models with no native tool-calling support.
package llm

import (
	"context"

	"github.com/shannon-ai/shannon/internal/model"
)

// Message is one turn of conversation handed to a Provider. Role is
// "user", "assistant", "system", or "tool".
type Message struct {
	Role        string
	Content     string
	ToolCalls   []model.ToolCall
	ToolResults []model.ToolResult
	Attachments []model.Attachment
}

// ToolSpec describes one callable tool in provider-agnostic form.
// Providers translate this into their own wire format (Anthropic tool
// blocks, OpenAI function definitions, or — for ReAct — a line in the
// system prompt).
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema, "type": "object"
}

// Request is a single completion request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float32
}

// Response is the provider's reply: either text, or one or more tool
// calls the caller must execute and feed back as ToolResults on the
// next Request.
type Response struct {
	Text           string
	ToolCalls      []model.ToolCall
	StopReason     string
	InputTokens    int
	OutputTokens   int
}

// Provider is the capability the pipeline, planner, and context
// summarizer all depend on. Implementations must be safe for concurrent
// use.
type Provider interface {
	// Name identifies the backend, e.g. "anthropic", "openai", "bedrock".
	Name() string

	// SupportsTools reports whether Complete accepts req.Tools directly.
	// When false, the factory wraps this provider in the ReAct adapter
	// before handing it to callers.
	SupportsTools() bool

	// Complete sends req and returns the model's reply.
	Complete(ctx context.Context, req Request) (Response, error)

	// CountTokens estimates the token cost of text for this provider's
	// tokenizer family. Implementations may approximate.
	CountTokens(text string) int
}

// SimpleCompleter adapts Provider to contextstore.Completer: a plain
// system/user string completion with no tools, used for summarization.
type SimpleCompleter struct {
	Provider Provider
	Model    string
}

// Complete implements contextstore.Completer.
func (c SimpleCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.Provider.Complete(ctx, Request{
		Model:    c.Model,
		System:   system,
		Messages: []Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
