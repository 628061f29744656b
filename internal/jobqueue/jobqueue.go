/*
Package jobqueue dispatches review tasks to workers, either through a River
queue backed by PostgreSQL or through an in-process worker pool.

For configuration options and tuning parameters, see queue_config.go.
*/
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/prreviewer/internal/review"
)

// Processor runs one review task.
type Processor interface {
	ProcessReview(ctx context.Context, task review.Task) (review.Result, error)
}

// Purger deletes expired dedupe records.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// ReviewJobArgs represents the arguments for a review job
type ReviewJobArgs struct {
	Task review.Task `json:"task"`
}

// Kind returns the job kind for River
func (ReviewJobArgs) Kind() string {
	return "pull_request_review"
}

// ReviewWorker handles review jobs
type ReviewWorker struct {
	river.WorkerDefaults[ReviewJobArgs]
	processor Processor
	timeout   time.Duration
}

// Timeout bounds one review job.
func (w *ReviewWorker) Timeout(*river.Job[ReviewJobArgs]) time.Duration {
	return w.timeout
}

// Work performs the review. Only failures before admission are retried; once
// the dedupe key is claimed another attempt would be skipped, so the job is
// cancelled instead.
func (w *ReviewWorker) Work(ctx context.Context, job *river.Job[ReviewJobArgs]) error {
	task := job.Args.Task
	logger := log.With().Str("dedupe_key", task.DedupeKey()).Logger()
	if job.JobRow != nil {
		logger = logger.With().Int64("job_id", job.ID).Int("attempt", job.Attempt).Logger()
	}

	result, err := w.processor.ProcessReview(ctx, task)
	if err != nil {
		if errors.Is(err, review.ErrDedupeStore) {
			logger.Warn().Err(err).Msg("Review not admitted, will retry")
			return err
		}
		logger.Error().Err(err).Msg("Review job failed")
		return river.JobCancel(err)
	}

	logger.Info().
		Str("status", string(result.Status)).
		Int("comments", len(result.Comments)).
		Msg("Review job completed")
	return nil
}

// DedupePurgeArgs represents the periodic dedupe cleanup job
type DedupePurgeArgs struct{}

// Kind returns the job kind for River
func (DedupePurgeArgs) Kind() string {
	return "dedupe_purge"
}

// DedupePurgeWorker deletes expired dedupe records
type DedupePurgeWorker struct {
	river.WorkerDefaults[DedupePurgeArgs]
	purger Purger
	now    func() time.Time
}

// Work performs the purge
func (w *DedupePurgeWorker) Work(ctx context.Context, _ *river.Job[DedupePurgeArgs]) error {
	n, err := w.purger.Purge(ctx, w.now())
	if err != nil {
		return fmt.Errorf("purge dedupe records: %w", err)
	}
	log.Debug().Int64("deleted", n).Msg("Purged expired dedupe records")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	config  QueueConfig
	consume bool
}

// Option configures a JobQueue.
type Option func(*jobQueueOptions)

type jobQueueOptions struct {
	processor Processor
	purger    Purger
}

// WithProcessor makes the queue work review jobs. Without it the queue only
// inserts jobs.
func WithProcessor(p Processor) Option {
	return func(o *jobQueueOptions) { o.processor = p }
}

// WithPurger schedules periodic cleanup of expired dedupe records.
func WithPurger(p Purger) Option {
	return func(o *jobQueueOptions) { o.purger = p }
}

// NewJobQueue creates a new job queue instance
func NewJobQueue(ctx context.Context, databaseURL string, config QueueConfig, opts ...Option) (*JobQueue, error) {
	config = config.withDefaults()
	var o jobQueueOptions
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	riverConfig := &river.Config{}
	consume := o.processor != nil
	if consume {
		workers := river.NewWorkers()
		river.AddWorker(workers, &ReviewWorker{processor: o.processor, timeout: config.JobTimeout})
		if o.purger != nil {
			river.AddWorker(workers, &DedupePurgeWorker{purger: o.purger, now: time.Now})
			riverConfig.PeriodicJobs = []*river.PeriodicJob{
				river.NewPeriodicJob(
					river.PeriodicInterval(config.PurgeInterval),
					func() (river.JobArgs, *river.InsertOpts) { return DedupePurgeArgs{}, nil },
					&river.PeriodicJobOpts{RunOnStart: true},
				),
			}
		}
		riverConfig.Queues = config.RiverQueueConfig()
		riverConfig.Workers = workers
	}

	client, err := river.NewClient(riverpgxv5.New(pool), riverConfig)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client:  client,
		pool:    pool,
		config:  config,
		consume: consume,
	}, nil
}

// Start starts the job queue workers. Insert-only queues have nothing to start.
func (jq *JobQueue) Start(ctx context.Context) error {
	if !jq.consume {
		return nil
	}
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers and closes the pool
func (jq *JobQueue) Stop(ctx context.Context) error {
	defer jq.pool.Close()
	if !jq.consume {
		return nil
	}
	return jq.client.Stop(ctx)
}

// Dispatch queues a review job. Identical tasks inserted within the unique
// period collapse into one job.
func (jq *JobQueue) Dispatch(ctx context.Context, task review.Task) error {
	res, err := jq.client.Insert(ctx, ReviewJobArgs{Task: task}, jq.config.reviewInsertOpts())
	if err != nil {
		return fmt.Errorf("failed to queue review job: %w", err)
	}
	if res.UniqueSkippedAsDuplicate {
		log.Debug().Str("dedupe_key", task.DedupeKey()).Msg("Review job already queued")
	}
	return nil
}

// Migrate applies River's schema migrations.
func Migrate(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate River schema: %w", err)
	}
	for _, v := range res.Versions {
		log.Info().Int("version", v.Version).Msg("Applied River migration")
	}
	return nil
}
