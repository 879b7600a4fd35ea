// Package cron schedules periodic background jobs, such as pruning idle
// conversations.
package cron

import "context"

// Job is a named task run on a schedule.
type Job interface {
	// Name identifies the job in logs. It must be unique per Scheduler.
	Name() string

	// Schedule is a five-field cron expression ("*/5 * * * *") or a
	// descriptor ("@hourly", "@every 90m").
	Schedule() string

	// Run does one pass. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// ParseSchedule checks that expr is a schedule a Scheduler accepts.
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}
