// Package telegram implements a reference Transport over go-telegram/bot,
// trimmed from the teacher's internal/channels/telegram adapter to the
// Start/Stop/SendMessage contract spec §4.16 calls for.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/model"
)

// Config configures the Telegram transport.
type Config struct {
	Token  string
	Logger *slog.Logger
}

// Transport bridges a Telegram long-polling bot onto the bus.
type Transport struct {
	bot    *tgbot.Bot
	bus    *bus.Bus
	logger *slog.Logger
	cancel context.CancelFunc
}

// New constructs a Transport and subscribes it to outgoing messages.
func New(b *bus.Bus, cfg Config) (*Transport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{bus: b, logger: logger}
	opts := []tgbot.Option{tgbot.WithDefaultHandler(t.onUpdate)}
	botClient, err := tgbot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	t.bot = botClient
	b.Subscribe(bus.EventMessageOutgoing, "telegram-transport", t.onMessageOutgoing)
	return t, nil
}

// Start begins long-polling for updates in a background goroutine.
func (t *Transport) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.bot.Start(ctx)
	return nil
}

// Stop cancels the long-polling loop.
func (t *Transport) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// SendMessage posts content to a Telegram chat ID.
func (t *Transport) SendMessage(channel, content string) error {
	chatID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", channel, err)
	}
	_, err = t.bot.SendMessage(context.Background(), &tgbot.SendMessageParams{ChatID: chatID, Text: content})
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

func (t *Transport) onUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	t.bus.Publish(bus.Event{
		Type: bus.EventMessageIncoming,
		MessageIncoming: &model.IncomingMessage{
			Platform:  "telegram",
			Channel:   strconv.FormatInt(update.Message.Chat.ID, 10),
			UserID:    strconv.FormatInt(update.Message.From.ID, 10),
			Content:   update.Message.Text,
			Timestamp: time.Now(),
		},
	})
}

func (t *Transport) onMessageOutgoing(ctx context.Context, e bus.Event) {
	if e.MessageOutgoing == nil || e.MessageOutgoing.Platform != "telegram" {
		return
	}
	if err := t.SendMessage(e.MessageOutgoing.Channel, e.MessageOutgoing.Content); err != nil {
		t.logger.Error("telegram: failed to deliver outbound message", "channel", e.MessageOutgoing.Channel, "error", err)
	}
}
