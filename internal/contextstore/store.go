// Package contextstore persists the rolling per-(platform, channel)
// conversation log the pipeline and planner read context from, and
// collapses it with an LLM-driven summary once it grows past a
// configured threshold.
package contextstore

import (
	"context"
	"fmt"

	"github.com/shannon-ai/shannon/internal/model"
)

// TokenCounter estimates the token cost of a string. Implementations are
// expected to be cheap and approximate; exactness is not required.
type TokenCounter interface {
	CountTokens(text string) int
}

// Summarizer condenses a run of context messages into a single summary
// string, written back as one system-role row. Implementations call out
// to an LLM provider; contextstore never talks to a provider directly,
// in case summarization is unavailable or disabled.
type Summarizer interface {
	Summarize(ctx context.Context, messages []model.ContextMessage) (string, error)
}

// Stats reports the size of a channel's stored context.
type Stats struct {
	Platform        string
	Channel         string
	MessageCount    int
	TotalTokens     int
	OldestTimestamp int64
	NewestTimestamp int64
}

// Store is the persistence interface the pipeline, planner, and command
// handler depend on. Get and Append never trigger summarization on their
// own; callers decide when to call MaybeSummarize (the pipeline does, on
// every turn, per spec §4.3).
type Store interface {
	// Append records a new message for (platform, channel) and returns
	// its assigned ID.
	Append(ctx context.Context, msg model.ContextMessage) (int64, error)

	// Get returns up to limit most recent messages for (platform,
	// channel) in chronological order. limit <= 0 means no bound.
	Get(ctx context.Context, platform, channel string, limit int) ([]model.ContextMessage, error)

	// Clear deletes all stored messages for (platform, channel).
	Clear(ctx context.Context, platform, channel string) error

	// Stats reports message count and token totals for (platform,
	// channel).
	Stats(ctx context.Context, platform, channel string) (Stats, error)

	// MaybeSummarize collapses the oldest half of non-system messages
	// into one system-role summary row if the channel's message count
	// exceeds maxMessages, or its token total exceeds
	// summarizeThreshold*windowTokens. It is a no-op otherwise, and a
	// no-op if summarizer is nil. Returns whether a summary was written.
	MaybeSummarize(ctx context.Context, platform, channel string, maxMessages int, summarizeThreshold float64, windowTokens int, summarizer Summarizer) (bool, error)

	// ForceSummarize collapses the oldest half of non-system messages
	// into one system-role summary row unconditionally, ignoring the
	// size thresholds MaybeSummarize checks. Used by /summarize (spec
	// §4.8), which must summarize even a small channel. Returns
	// ErrChannelEmpty if there is nothing stored, and false if there
	// are fewer than two non-system messages to collapse.
	ForceSummarize(ctx context.Context, platform, channel string, summarizer Summarizer) (bool, error)

	// Close releases underlying resources.
	Close() error
}

// ErrChannelEmpty is returned by ForceSummarize (and by
// PromptSummarizer.Summarize) when there is nothing to summarize.
var ErrChannelEmpty = fmt.Errorf("contextstore: channel has no messages")
