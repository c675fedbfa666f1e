// Package cron runs periodic maintenance jobs for the conversation backend,
// such as evicting idle sessions from the registry.
package cron

import "context"

// Job is a unit of periodic work.
type Job interface {
	// Name identifies the job in logs and must be unique per scheduler.
	Name() string
	// Schedule is a standard five-field cron expression.
	Schedule() string
	// Run executes one tick. A returned error is logged, never retried.
	Run(ctx context.Context) error
}
