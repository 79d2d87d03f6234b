// Package discord implements a reference Transport over discordgo,
// trimmed from the teacher's much larger internal/channels/discord
// adapter to the Start/Stop/SendMessage contract spec §4.16 calls for.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/model"
)

// Config configures the Discord transport.
type Config struct {
	Token  string
	Logger *slog.Logger
}

// Transport bridges a Discord bot connection onto the bus.
type Transport struct {
	session *discordgo.Session
	bus     *bus.Bus
	logger  *slog.Logger
}

// New constructs a Transport and subscribes it to outgoing messages.
func New(b *bus.Bus, cfg Config) (*Transport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	t := &Transport{session: session, bus: b, logger: logger}
	session.AddHandler(t.onMessageCreate)
	b.Subscribe(bus.EventMessageOutgoing, "discord-transport", t.onMessageOutgoing)
	return t, nil
}

// Start opens the Discord gateway connection.
func (t *Transport) Start() error {
	if err := t.session.Open(); err != nil {
		return fmt.Errorf("discord: open: %w", err)
	}
	return nil
}

// Stop closes the Discord gateway connection.
func (t *Transport) Stop() error {
	if err := t.session.Close(); err != nil {
		return fmt.Errorf("discord: close: %w", err)
	}
	return nil
}

// SendMessage posts content to a Discord channel ID.
func (t *Transport) SendMessage(channel, content string) error {
	if _, err := t.session.ChannelMessageSend(channel, content); err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	return nil
}

func (t *Transport) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	t.bus.Publish(bus.Event{
		Type: bus.EventMessageIncoming,
		MessageIncoming: &model.IncomingMessage{
			Platform:  "discord",
			Channel:   m.ChannelID,
			UserID:    m.Author.ID,
			Content:   m.Content,
			Timestamp: time.Now(),
		},
	})
}

func (t *Transport) onMessageOutgoing(ctx context.Context, e bus.Event) {
	if e.MessageOutgoing == nil || e.MessageOutgoing.Platform != "discord" {
		return
	}
	if err := t.SendMessage(e.MessageOutgoing.Channel, e.MessageOutgoing.Content); err != nil {
		t.logger.Error("discord: failed to deliver outbound message", "channel", e.MessageOutgoing.Channel, "error", err)
	}
}
