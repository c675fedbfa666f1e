package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("cron: unknown job")

type entry struct {
	job  Job
	lock sync.Mutex
}

// Scheduler runs registered jobs on their cron schedules. A job whose
// previous tick is still running skips the next one instead of overlapping.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	order   []string
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RegisterJob adds a job. Names must be unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.entries[name] = &entry{job: j}
	s.order = append(s.order, name)
	return nil
}

// Jobs returns registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a five-field cron expression or an @-descriptor
// such as "@every 1m".
func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, errors.New("empty schedule")
	}
	return scheduleParser.Parse(expr)
}

// Start parses every schedule and begins ticking. An invalid expression
// fails the whole start and nothing is scheduled.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cron.New()
	for _, name := range s.order {
		e := s.entries[name]
		sched, err := ParseSchedule(e.job.Schedule())
		if err != nil {
			return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
		}
		c.Schedule(sched, cron.FuncJob(func() { s.tick(s.ctx, e) }))
	}

	s.cron = c
	c.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

// RunNow executes a job synchronously, honoring the same overlap guard as
// scheduled ticks. It reports false when the job was already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if !e.lock.TryLock() {
		return false, nil
	}
	defer e.lock.Unlock()
	return true, e.job.Run(ctx)
}

func (s *Scheduler) tick(ctx context.Context, e *entry) {
	name := e.job.Name()
	if !e.lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", name)
		return
	}
	defer e.lock.Unlock()

	s.logger.Debug("cron: job started", "job", name)
	if err := e.job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("cron: job completed", "job", name)
}

// Stop cancels the job context and waits for in-flight ticks.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
