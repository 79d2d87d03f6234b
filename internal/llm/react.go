package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/shannon-ai/shannon/internal/model"
)

// reactActionPattern and reactActionInputPattern capture the Action and
// Action Input lines of one cycle emitted by a model with no native
// tool-calling support.
var (
	reactActionPattern      = regexp.MustCompile(`(?m)^Action:\s*(\S+)\s*$`)
	reactActionInputPattern = regexp.MustCompile(`(?ms)^Action Input:\s*(\{.*?\})\s*$`)
)

// ReActProvider wraps a Provider that lacks native tool calling. Tools
// are serialized into the system prompt as instructions to emit
// Thought/Action/Action Input/Observation cycles; the adapter parses the
// first such cycle out of the model's text and surfaces it as a
// tool_calls entry with stop_reason "tool_use", mirroring the vocabulary
// native providers use so the Tool Executor need not special-case it.
type ReActProvider struct {
	inner Provider
}

// NewReActProvider wraps inner in the prompt-only ReAct protocol.
func NewReActProvider(inner Provider) *ReActProvider {
	return &ReActProvider{inner: inner}
}

func (p *ReActProvider) Name() string         { return p.inner.Name() + "+react" }
func (p *ReActProvider) SupportsTools() bool  { return true }
func (p *ReActProvider) CountTokens(s string) int { return p.inner.CountTokens(s) }

const reactInstructions = `You do not have native tool calling. To use a tool, respond with exactly
this cycle and stop:

Thought: <your reasoning>
Action: <tool name>
Action Input: <JSON object of arguments>

After the tool runs you will be given an "Observation:" with its result
and may continue reasoning or issue another Action. When you are done,
respond normally with no Action line.

Available tools:
%s`

// renderReActMessages flattens tool calls and tool results into plain
// text Thought/Action and Observation lines, so providers that only
// understand a bare "role: content" message shape (no tool-role turns)
// can still drive the cycle.
func renderReActMessages(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		switch {
		case len(m.ToolCalls) > 0:
			var b strings.Builder
			b.WriteString(m.Content)
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				fmt.Fprintf(&b, "\nAction: %s\nAction Input: %s", tc.Name, args)
			}
			out = append(out, Message{Role: "assistant", Content: strings.TrimSpace(b.String())})
		case len(m.ToolResults) > 0:
			var b strings.Builder
			for _, tr := range m.ToolResults {
				if tr.Success {
					fmt.Fprintf(&b, "Observation: %s\n", tr.Output)
				} else {
					fmt.Fprintf(&b, "Observation: error: %s\n", tr.Error)
				}
			}
			out = append(out, Message{Role: "user", Content: strings.TrimSpace(b.String())})
		default:
			out = append(out, m)
		}
	}
	return out
}

func renderToolsForPrompt(tools []ToolSpec) string {
	var b strings.Builder
	for _, t := range tools {
		params, _ := json.Marshal(t.Parameters)
		fmt.Fprintf(&b, "- %s: %s (parameters: %s)\n", t.Name, t.Description, params)
	}
	return b.String()
}

// Complete strips req.Tools from the native request path, appends ReAct
// instructions to the system prompt, and parses the reply for an Action
// cycle. A reply without a valid Action line is treated as end_turn:
// the loop terminates per spec §4.5.
func (p *ReActProvider) Complete(ctx context.Context, req Request) (Response, error) {
	inner := req
	inner.Messages = renderReActMessages(req.Messages)
	if len(req.Tools) > 0 {
		inner.System = strings.TrimSpace(req.System + "\n\n" + fmt.Sprintf(reactInstructions, renderToolsForPrompt(req.Tools)))
		inner.Tools = nil
	}

	resp, err := p.inner.Complete(ctx, inner)
	if err != nil {
		return Response{}, err
	}

	action := reactActionPattern.FindStringSubmatch(resp.Text)
	input := reactActionInputPattern.FindStringSubmatch(resp.Text)
	if action == nil || input == nil {
		resp.StopReason = "end_turn"
		return resp, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(input[1]), &args); err != nil {
		// Malformed Action Input: the cycle is invalid, terminate the loop
		// rather than feed the executor garbage arguments.
		resp.StopReason = "end_turn"
		return resp, nil
	}

	resp.StopReason = "tool_use"
	resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
		ID:        uuid.NewString(),
		Name:      action[1],
		Arguments: args,
	})
	return resp, nil
}
