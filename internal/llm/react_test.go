package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/shannon-ai/shannon/internal/model"
)

type fakeProvider struct {
	text       string
	gotMessages []Message
}

func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) SupportsTools() bool { return false }
func (f *fakeProvider) CountTokens(s string) int { return len(s) }
func (f *fakeProvider) Complete(ctx context.Context, req Request) (Response, error) {
	f.gotMessages = req.Messages
	return Response{Text: f.text}, nil
}

func TestReActParsesActionCycle(t *testing.T) {
	inner := &fakeProvider{text: "Thought: I should list files\nAction: shell\nAction Input: {\"cmd\":\"ls\"}"}
	p := NewReActProvider(inner)

	resp, err := p.Complete(context.Background(), Request{
		Tools: []ToolSpec{{Name: "shell", Description: "run a command"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.StopReason != "tool_use" {
		t.Fatalf("expected stop_reason tool_use, got %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "shell" {
		t.Fatalf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Arguments["cmd"] != "ls" {
		t.Fatalf("unexpected arguments: %+v", resp.ToolCalls[0].Arguments)
	}
}

func TestReActNoActionEndsTurn(t *testing.T) {
	inner := &fakeProvider{text: "The answer is 42."}
	p := NewReActProvider(inner)

	resp, err := p.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.StopReason != "end_turn" {
		t.Fatalf("expected end_turn, got %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls, got %+v", resp.ToolCalls)
	}
}

func TestReActRendersToolResultsAsObservations(t *testing.T) {
	inner := &fakeProvider{text: "done"}
	p := NewReActProvider(inner)

	_, err := p.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: "assistant", ToolCalls: []model.ToolCall{{ID: "1", Name: "shell", Arguments: map[string]any{"cmd": "ls"}}}},
			{Role: "user", ToolResults: []model.ToolResult{{ToolCallID: "1", Success: true, Output: "file.txt"}}},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(inner.gotMessages) != 2 {
		t.Fatalf("expected 2 rendered messages, got %d", len(inner.gotMessages))
	}
	if !strings.Contains(inner.gotMessages[0].Content, "Action: shell") {
		t.Fatalf("expected rendered action, got %q", inner.gotMessages[0].Content)
	}
	if !strings.Contains(inner.gotMessages[1].Content, "Observation: file.txt") {
		t.Fatalf("expected rendered observation, got %q", inner.gotMessages[1].Content)
	}
}
