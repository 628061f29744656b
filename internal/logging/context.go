package logging

import "context"

type ctxKey struct{}

// WithReviewLogger attaches rl to ctx.
func WithReviewLogger(ctx context.Context, rl *ReviewLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, rl)
}

// FromContext returns the run logger attached to ctx, or nil. The nil logger
// is safe to call.
func FromContext(ctx context.Context) *ReviewLogger {
	rl, _ := ctx.Value(ctxKey{}).(*ReviewLogger)
	return rl
}
