package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{ err error }

func (s failingStore) Claim(context.Context, string, time.Time, time.Time) (bool, error) {
	return false, s.err
}

func TestGuard_AdmitOnceThenExpire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := NewGuard(NewMemoryStore(), WithClock(clock.Now))

	ok, err := g.Admit(ctx, "acme/widgets#7@abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Admit(ctx, "acme/widgets#7@abc")
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(DefaultTTL - time.Second)
	ok, err = g.Admit(ctx, "acme/widgets#7@abc")
	require.NoError(t, err)
	assert.False(t, ok, "still inside the window")

	clock.Advance(2 * time.Second)
	ok, err = g.Admit(ctx, "acme/widgets#7@abc")
	require.NoError(t, err)
	assert.True(t, ok, "window elapsed")
}

func TestGuard_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore())

	for _, key := range []string{"a/b#1@x", "a/b#1@y", "a/b#2@x"} {
		ok, err := g.Admit(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestGuard_ConcurrentAdmitsExactlyOne(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore())

	const workers = 50
	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := g.Admit(ctx, "same")
			if err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, admitted.Load())
}

func TestGuard_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	g := NewGuard(failingStore{err: storeErr})

	ok, err := g.Admit(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, ok)
}

func TestGuard_EmptyKey(t *testing.T) {
	g := NewGuard(NewMemoryStore())
	_, err := g.Admit(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestGuard_WithTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0)}
	g := NewGuard(NewMemoryStore(), WithClock(clock.Now), WithTTL(time.Minute))

	ok, _ := g.Admit(ctx, "k")
	require.True(t, ok)
	clock.Advance(time.Minute)
	ok, err := g.Admit(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Claim(ctx, "k", time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_PrunesExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Unix(1000, 0)

	for i := 0; i < pruneEvery-1; i++ {
		ok, err := s.Claim(ctx, fmt.Sprintf("key-%d", i), base, base.Add(time.Second))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, pruneEvery-1, s.Len())

	later := base.Add(time.Hour)
	ok, err := s.Claim(ctx, "fresh", later, later.Add(time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, s.Len())
}
