package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/pause"
)

func TestBridgeEmitsIncomingMessageWhenNotPaused(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)
	p := pause.New()
	NewBridge(b, p)

	incoming := make(chan bus.Event, 1)
	b.Subscribe(bus.EventMessageIncoming, "test", func(ctx context.Context, e bus.Event) {
		incoming <- e
	})

	b.Publish(bus.Event{
		Type: bus.EventWebhookReceived,
		WebhookEvent: &model.WebhookEvent{
			Source: "github", EventType: "push", Summary: "octocat pushed", ChannelTarget: "discord:42",
		},
		WebhookPromptFormat: "GitHub {event_type}: {summary}",
	})

	select {
	case e := <-incoming:
		if e.MessageIncoming.Platform != "discord" || e.MessageIncoming.Channel != "42" {
			t.Fatalf("unexpected channel target split: %+v", e.MessageIncoming)
		}
		if e.MessageIncoming.Content != "GitHub push: octocat pushed" {
			t.Fatalf("unexpected formatted content: %q", e.MessageIncoming.Content)
		}
		if e.MessageIncoming.UserID != SyntheticUserID {
			t.Fatalf("expected synthetic user id, got %q", e.MessageIncoming.UserID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an incoming message to be published")
	}
}

func TestBridgeQueuesWhilePaused(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)
	p := pause.New()
	p.Pause("")
	NewBridge(b, p)

	incoming := make(chan bus.Event, 1)
	b.Subscribe(bus.EventMessageIncoming, "test", func(ctx context.Context, e bus.Event) {
		incoming <- e
	})

	b.Publish(bus.Event{
		Type:         bus.EventWebhookReceived,
		WebhookEvent: &model.WebhookEvent{Source: "generic", EventType: "webhook", Summary: "hi", ChannelTarget: "slack:ops"},
	})

	select {
	case <-incoming:
		t.Fatal("expected no incoming message while paused")
	case <-time.After(300 * time.Millisecond):
	}

	if p.QueuedCount() != 1 {
		t.Fatalf("expected 1 queued event, got %d", p.QueuedCount())
	}
}

func TestReplayQueuedEmitsEveryDrainedEvent(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)
	p := pause.New()
	br := NewBridge(b, p)

	incoming := make(chan bus.Event, 2)
	b.Subscribe(bus.EventMessageIncoming, "test", func(ctx context.Context, e bus.Event) {
		incoming <- e
	})

	queued := []bus.Event{
		{Type: bus.EventWebhookReceived, WebhookEvent: &model.WebhookEvent{Source: "github", EventType: "push", Summary: "one", ChannelTarget: "discord:1"}},
		{Type: bus.EventWebhookReceived, WebhookEvent: &model.WebhookEvent{Source: "github", EventType: "push", Summary: "two", ChannelTarget: "discord:2"}},
	}
	br.ReplayQueued(queued)

	for i := 0; i < 2; i++ {
		select {
		case <-incoming:
		case <-time.After(time.Second):
			t.Fatalf("expected %d replayed messages, only got %d", len(queued), i)
		}
	}
}
