package webhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/pause"
)

// SyntheticUserID is the fixed operator-level sender attributed to
// webhook-derived messages injected into the pipeline.
const SyntheticUserID = "webhook-bridge"

// Bridge subscribes to WebhookReceived events, formats them via their
// endpoint's prompt_template, and injects a synthetic IncomingMessage
// into the pipeline — unless the pause manager is paused, in which case
// the event is queued instead (spec §4.12's closing paragraph).
type Bridge struct {
	bus   *bus.Bus
	pause *pause.Manager
}

// NewBridge constructs a Bridge and subscribes it to the bus.
func NewBridge(b *bus.Bus, p *pause.Manager) *Bridge {
	br := &Bridge{bus: b, pause: p}
	b.Subscribe(bus.EventWebhookReceived, "webhook-bridge", br.onWebhookReceived)
	return br
}

func (br *Bridge) onWebhookReceived(ctx context.Context, e bus.Event) {
	if e.WebhookEvent == nil {
		return
	}
	if br.pause.IsPaused() {
		br.pause.QueueEvent(e)
		return
	}
	br.emit(e)
}

func (br *Bridge) emit(e bus.Event) {
	we := e.WebhookEvent
	platform, channel := splitChannelTarget(we.ChannelTarget)
	content := formatPrompt(e.WebhookPromptFormat, we)

	br.bus.Publish(bus.Event{
		Type: bus.EventMessageIncoming,
		MessageIncoming: &model.IncomingMessage{
			Platform:  platform,
			Channel:   channel,
			UserID:    SyntheticUserID,
			Content:   content,
			Timestamp: time.Now(),
		},
	})
}

// formatPrompt expands {event_type} and {summary} placeholders in
// template; an empty template falls back to a plain "source event_type:
// summary" rendering.
func formatPrompt(template string, e *model.WebhookEvent) string {
	if template == "" {
		return fmt.Sprintf("%s %s: %s", e.Source, e.EventType, e.Summary)
	}
	r := strings.NewReplacer(
		"{event_type}", e.EventType,
		"{summary}", e.Summary,
		"{source}", e.Source,
	)
	return r.Replace(template)
}

func splitChannelTarget(target string) (platform, channel string) {
	platform, channel, ok := strings.Cut(target, ":")
	if !ok {
		return "", target
	}
	return platform, channel
}

// ReplayQueued re-emits every event the pause manager drained on resume.
// The composition root registers this as the pause.Manager's resume
// handler (pause.Manager.SetResumeHandler), so it runs for both the
// /resume command and the auto-resume timer.
func (br *Bridge) ReplayQueued(events []bus.Event) {
	for _, e := range events {
		br.emit(e)
	}
}
