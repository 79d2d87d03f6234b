// Package bus implements the typed publish/subscribe core that stitches
// transports, the pipeline, the scheduler, and the webhook server
// together. Each subscriber owns a bounded queue and a serial worker;
// publish is non-blocking and drops the event (with a warning) if a
// subscriber's queue is full.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shannon-ai/shannon/internal/model"
)

// EventType discriminates the payload carried by an Event.
type EventType string

const (
	EventMessageIncoming  EventType = "message.incoming"
	EventMessageOutgoing  EventType = "message.outgoing"
	EventSchedulerTrigger EventType = "scheduler.trigger"
	EventWebhookReceived  EventType = "webhook.received"
)

// Event is the bus's tagged-union payload. Exactly one of the typed
// fields is populated, matching the Type tag.
type Event struct {
	Type EventType

	MessageIncoming *model.IncomingMessage
	MessageOutgoing *model.OutgoingMessage

	SchedulerJobID      string
	SchedulerPayload    map[string]any
	WebhookEvent        *model.WebhookEvent
	WebhookPromptFormat string
}

// Handler processes one event. Handlers run sequentially per subscriber;
// a handler that needs concurrency must spawn its own goroutines.
type Handler func(ctx context.Context, e Event)

// QueueSize is the default bound on a subscriber's event queue.
const QueueSize = 256

type subscriber struct {
	id      string
	evtType EventType
	handler Handler
	queue   chan Event
	done    chan struct{}
}

// Bus is the in-process typed publish/subscribe core.
type Bus struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[EventType][]*subscriber
	wg          sync.WaitGroup
	stopped     bool
}

// New constructs a Bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:      logger,
		subscribers: make(map[EventType][]*subscriber),
	}
}

// Subscribe registers a handler for an event type under a stable id (used
// for Unsubscribe and for log attribution). Each subscriber gets its own
// bounded queue and worker goroutine, so one slow subscriber never stalls
// another.
func (b *Bus) Subscribe(evtType EventType, id string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	sub := &subscriber{
		id:      id,
		evtType: evtType,
		handler: handler,
		queue:   make(chan Event, QueueSize),
		done:    make(chan struct{}),
	}
	b.subscribers[evtType] = append(b.subscribers[evtType], sub)
	b.wg.Add(1)
	go b.runSubscriber(sub)
}

// Unsubscribe removes every subscription registered under id.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for evtType, subs := range b.subscribers {
		kept := subs[:0]
		for _, s := range subs {
			if s.id == id {
				close(s.done)
				continue
			}
			kept = append(kept, s)
		}
		b.subscribers[evtType] = kept
	}
}

// Publish enqueues e to every subscriber of e.Type. Delivery is
// at-most-once per process lifetime and ordering is preserved per
// subscriber; a full queue drops the event with a warning log.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subscribers[e.Type]
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.queue <- e:
		default:
			b.logger.Warn("bus: dropping event, subscriber queue full",
				"event_type", e.Type, "subscriber", s.id)
		}
	}
}

func (b *Bus) runSubscriber(s *subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case e := <-s.queue:
			s.handler(context.Background(), e)
		}
	}
}

// Stop drains outstanding work on every subscriber's queue, or returns
// once deadline elapses, whichever comes first.
func (b *Bus) Stop(deadline time.Duration) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	var all []*subscriber
	for _, subs := range b.subscribers {
		all = append(all, subs...)
	}
	b.subscribers = map[EventType][]*subscriber{}
	b.mu.Unlock()

	// Let queued work drain for up to `deadline`, then force-stop.
	drained := make(chan struct{})
	go func() {
		for _, s := range all {
			for len(s.queue) > 0 {
				time.Sleep(time.Millisecond)
			}
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(deadline):
	}
	for _, s := range all {
		close(s.done)
	}
	b.wg.Wait()
}
