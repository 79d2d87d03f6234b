package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shannon-ai/shannon/internal/bus"
)

// Keepalive tuning mirrors the teacher's ws_control_plane.go constants.
const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 45 * time.Second
	streamPing      = 15 * time.Second
)

// streamUpgrader accepts same-origin and operator-tool connections; the
// webhook server is meant to sit behind a reverse proxy or bind to
// loopback, so it does not enforce an Origin allowlist itself.
var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamEvent is the wire shape pushed to connected operator clients.
type streamEvent struct {
	Type      string `json:"type"`
	Channel   string `json:"channel,omitempty"`
	Content   string `json:"content,omitempty"`
	Source    string `json:"source,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// StreamHandler upgrades requests on the server's /ws/events path into a
// live feed of outbound messages and normalized webhook events, so an
// operator dashboard can observe the core without polling. Grounded on
// the teacher's gateway.wsControlPlane, trimmed from its full duplex
// session-control protocol to a read-only broadcast feed.
type StreamHandler struct {
	bus    *bus.Bus
	logger *slog.Logger
	conns  int64
}

// NewStreamHandler constructs a StreamHandler subscribing to b.
func NewStreamHandler(b *bus.Bus, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{bus: b, logger: logger}
}

// ActiveConnections reports how many clients are currently streaming.
func (h *StreamHandler) ActiveConnections() int64 {
	return atomic.LoadInt64(&h.conns)
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webhook: stream upgrade failed", "error", err)
		return
	}
	atomic.AddInt64(&h.conns, 1)
	defer atomic.AddInt64(&h.conns, -1)
	defer conn.Close()

	subID := "ws-stream-" + uuid.NewString()
	events := make(chan streamEvent, 64)

	h.bus.Subscribe(bus.EventMessageOutgoing, subID+"-out", func(_ context.Context, e bus.Event) {
		if e.MessageOutgoing == nil {
			return
		}
		select {
		case events <- streamEvent{Type: "message.outgoing", Channel: e.MessageOutgoing.Platform + ":" + e.MessageOutgoing.Channel, Content: e.MessageOutgoing.Content}:
		default:
		}
	})
	h.bus.Subscribe(bus.EventWebhookReceived, subID+"-wh", func(_ context.Context, e bus.Event) {
		if e.WebhookEvent == nil {
			return
		}
		select {
		case events <- streamEvent{Type: "webhook.received", Source: e.WebhookEvent.Source, EventType: e.WebhookEvent.EventType, Summary: e.WebhookEvent.Summary}:
		default:
		}
	})
	defer h.bus.Unsubscribe(subID + "-out")
	defer h.bus.Unsubscribe(subID + "-wh")

	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPing)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt := <-events:
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
