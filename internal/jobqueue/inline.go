package jobqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prreviewer/internal/review"
)

var (
	// ErrQueueFull is returned when the in-process buffer has no room.
	ErrQueueFull = errors.New("review queue is full")
	// ErrDispatcherClosed is returned after Stop.
	ErrDispatcherClosed = errors.New("review dispatcher is stopped")
)

// InlineDispatcher runs reviews on a fixed pool of goroutines in this
// process. Pending tasks are lost on restart; use JobQueue when that matters.
type InlineDispatcher struct {
	processor Processor
	workers   int
	timeout   time.Duration
	logger    zerolog.Logger

	tasks  chan review.Task
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewInlineDispatcher creates a dispatcher; call Start before dispatching.
func NewInlineDispatcher(processor Processor, config QueueConfig) *InlineDispatcher {
	config = config.withDefaults()
	return &InlineDispatcher{
		processor: processor,
		workers:   config.MaxWorkers,
		timeout:   config.JobTimeout,
		logger:    log.Logger,
		tasks:     make(chan review.Task, config.InlineBuffer),
	}
}

// Start launches the workers. They run until Stop drains the queue.
func (d *InlineDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for task := range d.tasks {
				d.run(ctx, task)
			}
		}()
	}
}

func (d *InlineDispatcher) run(ctx context.Context, task review.Task) {
	taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	logger := d.logger.With().Str("dedupe_key", task.DedupeKey()).Logger()
	result, err := d.processor.ProcessReview(taskCtx, task)
	if err != nil {
		logger.Error().Err(err).Msg("Review failed")
		return
	}
	logger.Info().
		Str("status", string(result.Status)).
		Int("comments", len(result.Comments)).
		Msg("Review finished")
}

// Dispatch queues task without blocking.
func (d *InlineDispatcher) Dispatch(ctx context.Context, task review.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new tasks and waits for queued ones to finish or ctx to end.
func (d *InlineDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
