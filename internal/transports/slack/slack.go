// Package slack implements a reference Transport over slack-go/slack's
// Socket Mode client, trimmed from the teacher's internal/channels/slack
// adapter to the Start/Stop/SendMessage contract spec §4.16 calls for.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/model"
)

// Config configures the Slack transport.
type Config struct {
	BotToken  string
	AppToken  string
	Logger    *slog.Logger
}

// Transport bridges a Slack Socket Mode connection onto the bus.
type Transport struct {
	client       *slack.Client
	socketClient *socketmode.Client
	bus          *bus.Bus
	logger       *slog.Logger
	cancel       context.CancelFunc
}

// New constructs a Transport and subscribes it to outgoing messages.
func New(b *bus.Bus, cfg Config) (*Transport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	socketClient := socketmode.New(client)

	t := &Transport{client: client, socketClient: socketClient, bus: b, logger: logger}
	b.Subscribe(bus.EventMessageOutgoing, "slack-transport", t.onMessageOutgoing)
	return t, nil
}

// Start begins the Socket Mode event loop in a background goroutine.
func (t *Transport) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.runEventLoop(ctx)
	go t.socketClient.RunContext(ctx)
	return nil
}

// Stop cancels the Socket Mode event loop.
func (t *Transport) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// SendMessage posts content to a Slack channel ID.
func (t *Transport) SendMessage(channel, content string) error {
	_, _, err := t.client.PostMessage(channel, slack.MsgOptionText(content, false))
	if err != nil {
		return fmt.Errorf("slack: send: %w", err)
	}
	return nil
}

func (t *Transport) runEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-t.socketClient.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			t.socketClient.Ack(*evt.Request)
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			t.handleEventsAPI(apiEvent)
		}
	}
}

func (t *Transport) handleEventsAPI(apiEvent slackevents.EventsAPIEvent) {
	inner, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || inner.BotID != "" {
		return
	}
	t.bus.Publish(bus.Event{
		Type: bus.EventMessageIncoming,
		MessageIncoming: &model.IncomingMessage{
			Platform:  "slack",
			Channel:   inner.Channel,
			UserID:    inner.User,
			Content:   inner.Text,
			Timestamp: time.Now(),
		},
	})
}

func (t *Transport) onMessageOutgoing(ctx context.Context, e bus.Event) {
	if e.MessageOutgoing == nil || e.MessageOutgoing.Platform != "slack" {
		return
	}
	if err := t.SendMessage(e.MessageOutgoing.Channel, e.MessageOutgoing.Content); err != nil {
		t.logger.Error("slack: failed to deliver outbound message", "channel", e.MessageOutgoing.Channel, "error", err)
	}
}
