package github

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v72/github"
)

const (
	appJWTLifetime  = 9 * time.Minute
	appJWTClockSkew = 60 * time.Second
	tokenRefreshAt  = 5 * time.Minute
)

// KeyLoader fetches the PEM-encoded GitHub App private key.
type KeyLoader func(ctx context.Context) ([]byte, error)

// FileKeyLoader reads the private key from path.
func FileKeyLoader(path string) KeyLoader {
	return func(context.Context) ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read GitHub App private key: %w", err)
		}
		return data, nil
	}
}

// AppTokenSource authenticates as a GitHub App installation. The private key
// is loaded on first use and kept for the life of the process; a failed load
// is retried on the next call. Installation tokens are reused until shortly
// before they expire.
type AppTokenSource struct {
	appID          int64
	installationID int64
	loadKey        KeyLoader
	baseURL        string
	transport      http.RoundTripper
	now            func() time.Time

	mu        sync.Mutex
	key       *rsa.PrivateKey
	token     string
	expiresAt time.Time
}

// AppTokenOption configures an AppTokenSource.
type AppTokenOption func(*AppTokenSource)

// WithAppBaseURL points token exchange at a GitHub Enterprise API.
func WithAppBaseURL(u string) AppTokenOption {
	return func(s *AppTokenSource) { s.baseURL = u }
}

// WithAppTransport sets the round tripper used for token exchange.
func WithAppTransport(rt http.RoundTripper) AppTokenOption {
	return func(s *AppTokenSource) { s.transport = rt }
}

// WithAppClock injects the time source.
func WithAppClock(now func() time.Time) AppTokenOption {
	return func(s *AppTokenSource) { s.now = now }
}

// NewAppTokenSource creates a token source for one installation.
func NewAppTokenSource(appID, installationID int64, loadKey KeyLoader, opts ...AppTokenOption) *AppTokenSource {
	s := &AppTokenSource{
		appID:          appID,
		installationID: installationID,
		loadKey:        loadKey,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token implements TokenSource.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expiresAt.Add(-tokenRefreshAt)) {
		return s.token, nil
	}

	key, err := s.privateKeyLocked(ctx)
	if err != nil {
		return "", err
	}

	signed, err := s.appJWT(key, now)
	if err != nil {
		return "", err
	}

	gh := github.NewClient(&http.Client{Transport: s.transport}).WithAuthToken(signed)
	if s.baseURL != "" {
		u, err := parseBaseURL(s.baseURL)
		if err != nil {
			return "", err
		}
		gh.BaseURL = u
	}

	tok, _, err := gh.Apps.CreateInstallationToken(ctx, s.installationID, nil)
	if err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}
	if tok.GetToken() == "" {
		return "", errors.New("installation token response had no token")
	}

	s.token = tok.GetToken()
	s.expiresAt = tok.GetExpiresAt().Time
	return s.token, nil
}

func (s *AppTokenSource) privateKeyLocked(ctx context.Context) (*rsa.PrivateKey, error) {
	if s.key != nil {
		return s.key, nil
	}
	if s.loadKey == nil {
		return nil, errors.New("no GitHub App private key loader configured")
	}
	pem, err := s.loadKey(ctx)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse GitHub App private key: %w", err)
	}
	s.key = key
	return key, nil
}

func (s *AppTokenSource) appJWT(key *rsa.PrivateKey, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
		Issuer:    strconv.FormatInt(s.appID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign app JWT: %w", err)
	}
	return signed, nil
}
