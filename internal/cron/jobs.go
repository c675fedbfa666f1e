package cron

import (
	"context"
	"log/slog"
)

// DefaultEvictionSchedule runs session eviction every five minutes.
const DefaultEvictionSchedule = "*/5 * * * *"

// Pruner drops idle sessions and reports how many were removed.
// *session.Registry satisfies it.
type Pruner interface {
	Prune() int
	Len() int
}

// SessionEvictionJob evicts idle sessions so that per-session state does
// not grow without bound between requests.
type SessionEvictionJob struct {
	Sessions     Pruner
	Logger       *slog.Logger
	ScheduleExpr string
}

var _ Job = (*SessionEvictionJob)(nil)

// Name implements Job.
func (j *SessionEvictionJob) Name() string { return "session_eviction" }

// Schedule implements Job.
func (j *SessionEvictionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultEvictionSchedule
}

// Run implements Job.
func (j *SessionEvictionJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed := j.Sessions.Prune()
	if removed > 0 && j.Logger != nil {
		j.Logger.Info("cron: evicted idle sessions",
			"removed", removed,
			"remaining", j.Sessions.Len(),
		)
	}
	return nil
}

// DefaultSweepSchedule runs sweeps every minute.
const DefaultSweepSchedule = "* * * * *"

// SweepJob prunes expired entries from a keyed structure such as a rate
// limiter. Unlike SessionEvictionJob it only logs at debug level.
type SweepJob struct {
	JobName      string
	Target       Pruner
	Logger       *slog.Logger
	ScheduleExpr string
}

var _ Job = (*SweepJob)(nil)

// Name implements Job.
func (j *SweepJob) Name() string { return j.JobName }

// Schedule implements Job.
func (j *SweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultSweepSchedule
}

// Run implements Job.
func (j *SweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if removed := j.Target.Prune(); removed > 0 && j.Logger != nil {
		j.Logger.Debug("cron: swept expired keys", "job", j.JobName, "removed", removed, "remaining", j.Target.Len())
	}
	return nil
}
