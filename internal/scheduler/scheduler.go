// Package scheduler implements Shannon's heartbeat timer and cron-like
// job dispatcher (spec §4.10). Both loops check the pause manager first:
// while paused, heartbeat ticks and cron firings are simply skipped, not
// queued, since they are recurring by nature.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/pause"
)

// cronParser supports standard 5-field expressions plus the optional
// leading seconds field and named descriptors ("@hourly").
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is one persisted scheduled firing.
type Job struct {
	ID      string
	Cron    string
	Command string
	Payload map[string]any

	schedule cron.Schedule
}

// Scheduler runs a heartbeat tick and fires SchedulerTrigger events for
// every configured Job whose cron expression is due.
type Scheduler struct {
	bus    *bus.Bus
	pause  *pause.Manager
	logger *slog.Logger

	heartbeatInterval time.Duration

	mu   sync.Mutex
	jobs map[string]*Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler. jobs are validated eagerly; an invalid
// cron expression is rejected rather than silently dropped.
func New(b *bus.Bus, p *pause.Manager, heartbeatInterval time.Duration, jobs []Job, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	s := &Scheduler{
		bus:               b,
		pause:             p,
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
		jobs:              make(map[string]*Job),
	}
	for _, j := range jobs {
		if err := s.AddJob(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddJob validates and registers j, replacing any job with the same ID.
func (s *Scheduler) AddJob(j Job) error {
	sched, err := cronParser.Parse(j.Cron)
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q for job %q: %w", j.Cron, j.ID, err)
	}
	job := j
	job.schedule = sched
	s.mu.Lock()
	s.jobs[j.ID] = &job
	s.mu.Unlock()
	return nil
}

// RemoveJob deletes a job by id.
func (s *Scheduler) RemoveJob(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// ListJobIDs implements command.JobLister.
func (s *Scheduler) ListJobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// Start launches the heartbeat and cron-dispatch loops.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.runHeartbeat(ctx)
	go s.runCronLoop(ctx)
}

// Stop cancels both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runHeartbeat(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.pause.IsPaused() {
				s.logger.Debug("scheduler: heartbeat skipped while paused")
				continue
			}
			s.logger.Debug("scheduler: heartbeat")
		}
	}
}

// runCronLoop checks every job once a second against its next scheduled
// time, so jobs fire with one-second resolution.
func (s *Scheduler) runCronLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastFired := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.pause.IsPaused() {
				continue
			}
			s.fireDueJobs(now, lastFired)
		}
	}
}

func (s *Scheduler) fireDueJobs(now time.Time, lastFired map[string]time.Time) {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	for _, j := range jobs {
		prev, ok := lastFired[j.ID]
		if !ok {
			prev = now.Add(-time.Minute)
		}
		next := j.schedule.Next(prev)
		if next.After(now) {
			continue
		}
		lastFired[j.ID] = now
		s.bus.Publish(bus.Event{
			Type:             bus.EventSchedulerTrigger,
			SchedulerJobID:   j.ID,
			SchedulerPayload: j.Payload,
		})
		s.logger.Info("scheduler: fired job", "job_id", j.ID, "command", strings.TrimSpace(j.Command))
	}
}
