package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prreviewer/internal/review"
)

type fakeProcessor struct {
	mu      sync.Mutex
	tasks   []review.Task
	err     error
	block   chan struct{}
	running atomic.Int32
	peak    atomic.Int32
}

func (p *fakeProcessor) ProcessReview(ctx context.Context, task review.Task) (review.Result, error) {
	n := p.running.Add(1)
	defer p.running.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return review.Result{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	if p.err != nil {
		return review.Result{Status: review.StatusFailed}, p.err
	}
	return review.Result{Status: review.StatusReviewed}, nil
}

func (p *fakeProcessor) seen() []review.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]review.Task(nil), p.tasks...)
}

func testTask(n int) review.Task {
	return review.Task{Owner: "acme", Repo: "widgets", PRNumber: n, HeadSHA: fmt.Sprintf("sha%d", n)}
}

func reviewJob(task review.Task) *river.Job[ReviewJobArgs] {
	return &river.Job[ReviewJobArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: 1},
		Args:   ReviewJobArgs{Task: task},
	}
}

func TestReviewWorker_Success(t *testing.T) {
	p := &fakeProcessor{}
	w := &ReviewWorker{processor: p, timeout: time.Minute}

	require.NoError(t, w.Work(context.Background(), reviewJob(testTask(1))))
	assert.Equal(t, []review.Task{testTask(1)}, p.seen())
	assert.Equal(t, time.Minute, w.Timeout(nil))
}

func TestReviewWorker_AdmissionFailureIsRetried(t *testing.T) {
	procErr := fmt.Errorf("%w: connection refused", review.ErrDedupeStore)
	w := &ReviewWorker{processor: &fakeProcessor{err: procErr}}

	err := w.Work(context.Background(), reviewJob(testTask(1)))
	assert.Equal(t, procErr, err)
}

func TestReviewWorker_FailureAfterAdmissionCancelsJob(t *testing.T) {
	procErr := fmt.Errorf("%w: 502", review.ErrDiffFetch)
	w := &ReviewWorker{processor: &fakeProcessor{err: procErr}}

	err := w.Work(context.Background(), reviewJob(testTask(1)))
	require.Error(t, err)
	assert.NotEqual(t, procErr, err)
	assert.ErrorIs(t, err, review.ErrDiffFetch)
}

type fakePurger struct {
	at  time.Time
	err error
}

func (p *fakePurger) Purge(_ context.Context, now time.Time) (int64, error) {
	p.at = now
	return 3, p.err
}

func TestDedupePurgeWorker(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := &fakePurger{}
	w := &DedupePurgeWorker{purger: p, now: func() time.Time { return now }}

	require.NoError(t, w.Work(context.Background(), &river.Job[DedupePurgeArgs]{}))
	assert.Equal(t, now, p.at)

	p.err = errors.New("db gone")
	require.Error(t, w.Work(context.Background(), &river.Job[DedupePurgeArgs]{}))
}

func TestQueueConfig_Defaults(t *testing.T) {
	c := QueueConfig{MaxWorkers: 9}.withDefaults()
	assert.Equal(t, 9, c.MaxWorkers)
	assert.Equal(t, 1, c.MaxAttempts)
	assert.Equal(t, 24*time.Hour, c.UniquePeriod)

	opts := c.reviewInsertOpts()
	assert.Equal(t, 1, opts.MaxAttempts)
	assert.True(t, opts.UniqueOpts.ByArgs)
	assert.Equal(t, 24*time.Hour, opts.UniqueOpts.ByPeriod)
	assert.Equal(t, 9, c.RiverQueueConfig()[river.QueueDefault].MaxWorkers)
}

func TestJobKinds(t *testing.T) {
	assert.Equal(t, "pull_request_review", ReviewJobArgs{}.Kind())
	assert.Equal(t, "dedupe_purge", DedupePurgeArgs{}.Kind())
}

func TestInlineDispatcher_RunsAllTasks(t *testing.T) {
	p := &fakeProcessor{}
	d := NewInlineDispatcher(p, QueueConfig{MaxWorkers: 3, InlineBuffer: 20})
	d.Start(context.Background())

	for i := 1; i <= 10; i++ {
		require.NoError(t, d.Dispatch(context.Background(), testTask(i)))
	}
	require.NoError(t, d.Stop(context.Background()))

	assert.Len(t, p.seen(), 10)
	assert.LessOrEqual(t, p.peak.Load(), int32(3))
}

func TestInlineDispatcher_FullAndClosed(t *testing.T) {
	p := &fakeProcessor{block: make(chan struct{})}
	d := NewInlineDispatcher(p, QueueConfig{MaxWorkers: 1, InlineBuffer: 1})
	d.Start(context.Background())

	require.NoError(t, d.Dispatch(context.Background(), testTask(1)))
	require.Eventually(t, func() bool { return p.running.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, d.Dispatch(context.Background(), testTask(2)))
	assert.ErrorIs(t, d.Dispatch(context.Background(), testTask(3)), ErrQueueFull)

	close(p.block)
	require.NoError(t, d.Stop(context.Background()))
	assert.ErrorIs(t, d.Dispatch(context.Background(), testTask(4)), ErrDispatcherClosed)
	assert.Len(t, p.seen(), 2)
}

func TestInlineDispatcher_StopHonoursContext(t *testing.T) {
	p := &fakeProcessor{block: make(chan struct{})}
	d := NewInlineDispatcher(p, QueueConfig{MaxWorkers: 1})
	d.Start(context.Background())
	require.NoError(t, d.Dispatch(context.Background(), testTask(1)))
	require.Eventually(t, func() bool { return p.running.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)
	close(p.block)
}

func TestInlineDispatcher_CancelledContext(t *testing.T) {
	d := NewInlineDispatcher(&fakeProcessor{}, QueueConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Dispatch(ctx, testTask(1)), context.Canceled)
}
