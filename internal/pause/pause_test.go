package pause

import (
	"testing"
	"time"

	"github.com/shannon-ai/shannon/internal/bus"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"2h", 2 * time.Hour, true},
		{"30m", 30 * time.Minute, true},
		{"1h30m", 90 * time.Minute, true},
		{"1h30m15s", 90*time.Minute + 15*time.Second, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDuration(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestPauseIdempotentAndResumeDrainsOnce(t *testing.T) {
	m := New()
	m.Pause("")
	m.Pause("")
	if !m.IsPaused() {
		t.Fatalf("expected paused=true after two Pause calls")
	}
	m.QueueEvent(bus.Event{Type: bus.EventWebhookReceived})
	m.QueueEvent(bus.Event{Type: bus.EventWebhookReceived})

	drained := m.Resume()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained events, got %d", len(drained))
	}
	if m.IsPaused() {
		t.Fatalf("expected paused=false after Resume")
	}
	if again := m.Resume(); len(again) != 0 {
		t.Fatalf("expected second Resume to drain nothing, got %d", len(again))
	}
}

func TestAutoResumeAfterDuration(t *testing.T) {
	m := New()
	m.Pause("1s")
	if !m.IsPaused() {
		t.Fatalf("expected paused immediately")
	}
	time.Sleep(1200 * time.Millisecond)
	if m.IsPaused() {
		t.Fatalf("expected auto-resume after duration elapsed")
	}
}

func TestResumeHandlerReceivesDrainedEvents(t *testing.T) {
	m := New()
	var got []bus.Event
	m.SetResumeHandler(func(events []bus.Event) { got = events })

	m.Pause("")
	m.QueueEvent(bus.Event{Type: bus.EventWebhookReceived})
	m.QueueEvent(bus.Event{Type: bus.EventWebhookReceived})
	m.Resume()

	if len(got) != 2 {
		t.Fatalf("expected resume handler to receive 2 events, got %d", len(got))
	}

	got = nil
	if again := m.Resume(); len(again) != 0 || got != nil {
		t.Fatalf("expected a second Resume to drain nothing and not call the handler, got drained=%d handler=%v", len(again), got)
	}
}

func TestAutoResumeInvokesResumeHandler(t *testing.T) {
	m := New()
	done := make(chan []bus.Event, 1)
	m.SetResumeHandler(func(events []bus.Event) { done <- events })

	m.Pause("1s")
	m.QueueEvent(bus.Event{Type: bus.EventWebhookReceived})

	select {
	case events := <-done:
		if len(events) != 1 {
			t.Fatalf("expected 1 replayed event, got %d", len(events))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected auto-resume to invoke the resume handler")
	}
}

func TestDirectMessagesAreNotQueuedByCaller(t *testing.T) {
	// The manager itself never distinguishes message kinds — it is the
	// caller's responsibility (the pipeline) to never call QueueEvent
	// for direct messages. This test documents that QueueEvent/DrainQueue
	// behave as a plain FIFO with no filtering.
	m := New()
	m.QueueEvent(bus.Event{Type: bus.EventMessageIncoming})
	if got := m.QueuedCount(); got != 1 {
		t.Fatalf("expected 1 queued event, got %d", got)
	}
}
