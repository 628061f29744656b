/*
Package jobqueue configuration - tunable parameters for review dispatch.

## Quick Configuration Reference:

### Performance Tuning:
- Increase MaxWorkers for higher throughput (more pull requests reviewed at once)
- Each worker holds one review; per-file concurrency is configured on the reviewer

### Reliability Tuning:
- MaxAttempts defaults to 1. A retried job carries the same dedupe key and
  would be skipped by the guard, so retries only help when the failure
  happened before admission.
- JobTimeout bounds one review including all reviewer calls.

### Deduplication:
- UniquePeriod lets River drop identical inserts (same owner, repo, PR and
  head SHA) while an earlier job for the same commit is still recent.
- PurgeInterval controls how often expired dedupe records are deleted.

## Database Requirements:
- PostgreSQL with River schema migrations applied (`prreviewer migrate`)
*/
package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	MaxWorkers    int           `koanf:"max_workers"`    // Concurrent review jobs (default: 4)
	MaxAttempts   int           `koanf:"max_attempts"`   // River attempts per job (default: 1)
	JobTimeout    time.Duration `koanf:"job_timeout"`    // Upper bound for one review (default: 15m)
	UniquePeriod  time.Duration `koanf:"unique_period"`  // Window for River insert uniqueness (default: 24h)
	PurgeInterval time.Duration `koanf:"purge_interval"` // Expired dedupe record cleanup (default: 1h)
	InlineBuffer  int           `koanf:"inline_buffer"`  // Pending tasks for the in-process dispatcher (default: 100)
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxWorkers:    4,
		MaxAttempts:   1,
		JobTimeout:    15 * time.Minute,
		UniquePeriod:  24 * time.Hour,
		PurgeInterval: time.Hour,
		InlineBuffer:  100,
	}
}

// withDefaults fills zero values from DefaultQueueConfig.
func (c QueueConfig) withDefaults() QueueConfig {
	d := DefaultQueueConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.UniquePeriod <= 0 {
		c.UniquePeriod = d.UniquePeriod
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = d.PurgeInterval
	}
	if c.InlineBuffer <= 0 {
		c.InlineBuffer = d.InlineBuffer
	}
	return c
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}

// reviewInsertOpts are the options used for every review job.
func (c QueueConfig) reviewInsertOpts() *river.InsertOpts {
	return &river.InsertOpts{
		MaxAttempts: c.MaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: c.UniquePeriod,
		},
	}
}
