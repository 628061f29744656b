// Package dedupe guarantees that a unit of review work is admitted at most
// once per expiry window, across any number of concurrent workers.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is how long an admitted key blocks repeat admissions.
const DefaultTTL = 24 * time.Hour

// Store is durable storage with an atomic conditional insert.
type Store interface {
	// Claim records key with the given expiry unless a record for key exists
	// whose expiry is after now. It reports whether the record was written.
	// Errors are infrastructure failures only; an existing key is not an error.
	Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error)
}

// ErrEmptyKey is returned when Admit is called without a key.
var ErrEmptyKey = errors.New("dedupe: empty key")

// Guard admits each key once per TTL.
type Guard struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock injects the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard creates a guard over store.
func NewGuard(store Store, opts ...Option) *Guard {
	g := &Guard{store: store, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit returns true for the first caller of key within the TTL window and
// false for every later caller. Storage failures are returned as errors and
// must not be read as either outcome.
func (g *Guard) Admit(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	now := g.now()
	ok, err := g.store.Claim(ctx, key, now, now.Add(g.ttl))
	if err != nil {
		return false, fmt.Errorf("claim %q: %w", key, err)
	}
	return ok, nil
}
