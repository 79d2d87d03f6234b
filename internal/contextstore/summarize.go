package contextstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/shannon-ai/shannon/internal/model"
)

// Completer is the narrow LLM capability summarization needs: a single
// non-streaming completion given a system prompt and a user prompt. The
// llm package's providers satisfy this without contextstore importing
// llm, keeping the dependency pointed the other way.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// PromptSummarizer builds a summarization prompt in the shape the
// teacher's context summarizer used (a fixed system instruction plus a
// transcript rendering) and calls out to a Completer.
type PromptSummarizer struct {
	completer Completer
}

// NewPromptSummarizer wraps completer as a Summarizer.
func NewPromptSummarizer(completer Completer) *PromptSummarizer {
	return &PromptSummarizer{completer: completer}
}

const summarizeSystemPrompt = `You condense a conversation transcript into a short factual summary.
Preserve names, decisions, open questions, and anything a continuing
assistant would need to avoid repeating itself. Do not editorialize.
Write plain prose, no headers, under 200 words.`

// BuildTranscript renders messages as "role: content" lines, the input
// the summarization prompt is built from.
func BuildTranscript(messages []model.ContextMessage) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// Summarize implements Summarizer.
func (s *PromptSummarizer) Summarize(ctx context.Context, messages []model.ContextMessage) (string, error) {
	if len(messages) == 0 {
		return "", ErrChannelEmpty
	}
	transcript := BuildTranscript(messages)
	out, err := s.completer.Complete(ctx, summarizeSystemPrompt, transcript)
	if err != nil {
		return "", fmt.Errorf("contextstore: prompt summarizer: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("contextstore: prompt summarizer: empty summary")
	}
	return "Summary of earlier conversation: " + out, nil
}
