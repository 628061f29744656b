package github

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitedTransport spaces outbound requests with a token bucket.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// newRateLimitedTransport returns base unchanged when rps is not positive.
func newRateLimitedTransport(base http.RoundTripper, rps float64) http.RoundTripper {
	if rps <= 0 {
		return base
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedTransport{base: base, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return t.base.RoundTrip(req)
}

// tokenTransport adds the Authorization header from a TokenSource.
type tokenTransport struct {
	tokens TokenSource
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("github token: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}
