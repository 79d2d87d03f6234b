// Package pause implements the binary paused state that suspends
// autonomous behaviors (scheduler firings, webhook-derived turns) while
// direct user messages keep flowing regardless.
package pause

import (
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/shannon-ai/shannon/internal/bus"
)

// durationPattern matches the spec's "NhNmNs" syntax, requiring at least
// one group.
var durationPattern = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration parses "2h", "30m", "1h30m", "1h30m15s" into a duration,
// or reports ok=false for "abc" or "" (spec §8's quantified property).
func ParseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, false
	}
	var total time.Duration
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		total += time.Duration(h) * time.Hour
	}
	if m[2] != "" {
		mm, _ := strconv.Atoi(m[2])
		total += time.Duration(mm) * time.Minute
	}
	if m[3] != "" {
		ss, _ := strconv.Atoi(m[3])
		total += time.Duration(ss) * time.Second
	}
	return total, true
}

// Manager holds the process-wide paused state, a queue of events
// deferred while paused, and an optional auto-resume timer.
type Manager struct {
	mu        sync.Mutex
	paused    bool
	queue     []bus.Event
	resumeTmr *time.Timer
	onResume  func([]bus.Event)
}

// New constructs a Manager in the resumed state.
func New() *Manager {
	return &Manager{}
}

// SetResumeHandler registers fn to be called with whatever events Resume
// drains, every time Resume runs — whether triggered by /resume or by the
// auto-resume timer. Used to replay queued webhook-derived turns (spec
// §4.12/§4.13).
func (m *Manager) SetResumeHandler(fn func([]bus.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResume = fn
}

// Pause sets paused=true. If duration parses, a timer auto-resumes after
// that many seconds; two consecutive Pause calls leave paused=true and
// the second call's duration (if any) replaces any pending timer.
func (m *Manager) Pause(duration string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	if m.resumeTmr != nil {
		m.resumeTmr.Stop()
		m.resumeTmr = nil
	}
	if d, ok := ParseDuration(duration); ok && d > 0 {
		m.resumeTmr = time.AfterFunc(d, func() { m.Resume() })
	}
}

// Resume clears paused, cancels any auto-resume timer, and returns the
// queued events drained exactly once. If a resume handler is registered
// (see SetResumeHandler), it is called with the drained events before
// Resume returns.
func (m *Manager) Resume() []bus.Event {
	m.mu.Lock()
	m.paused = false
	if m.resumeTmr != nil {
		m.resumeTmr.Stop()
		m.resumeTmr = nil
	}
	drained := m.queue
	m.queue = nil
	onResume := m.onResume
	m.mu.Unlock()

	if onResume != nil && len(drained) > 0 {
		onResume(drained)
	}
	return drained
}

// QueueEvent appends e to the pause queue. Callers only do this for
// autonomous (webhook-derived) events — direct messages are never
// queued (spec §4.13).
func (m *Manager) QueueEvent(e bus.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, e)
}

// DrainQueue returns and clears the queue without changing paused state.
func (m *Manager) DrainQueue() []bus.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	drained := m.queue
	m.queue = nil
	return drained
}

// IsPaused reports the current paused state.
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// QueuedCount reports how many events are currently queued, for
// /status reporting.
func (m *Manager) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
