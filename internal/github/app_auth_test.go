package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, pem.EncodeToMemory(block)
}

func TestAppTokenSource_ExchangesAndCaches(t *testing.T) {
	key, pemBytes := testKey(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	expires := now.Add(time.Hour)

	f, srv := newFakeGitHub(t)
	f.handle("POST /app/installations/99/access_tokens", http.StatusCreated,
		fmt.Sprintf(`{"token":"ghs_install","expires_at":%q}`, expires.Format(time.RFC3339)))

	var loads atomic.Int32
	loader := func(context.Context) ([]byte, error) {
		loads.Add(1)
		return pemBytes, nil
	}

	clock := now
	src := NewAppTokenSource(12345, 99, loader, WithAppBaseURL(srv.URL), WithAppClock(func() time.Time { return clock }))

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghs_install", tok)

	auth := f.last().Auth
	require.True(t, strings.HasPrefix(auth, "Bearer "))
	parsed, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "12345", claims.Issuer)
	assert.Equal(t, now.Add(-60*time.Second).Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(9*time.Minute).Unix(), claims.ExpiresAt.Unix())

	// Reused while far from expiry.
	clock = now.Add(30 * time.Minute)
	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghs_install", tok)
	assert.Len(t, f.requests, 1)

	// Refreshed close to expiry; the key is not loaded again.
	clock = expires.Add(-time.Minute)
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.requests, 2)
	assert.EqualValues(t, 1, loads.Load())
}

func TestAppTokenSource_KeyLoadErrorNotCached(t *testing.T) {
	_, pemBytes := testKey(t)
	f, srv := newFakeGitHub(t)
	f.handle("POST /app/installations/1/access_tokens", http.StatusCreated,
		fmt.Sprintf(`{"token":"ghs_ok","expires_at":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339)))

	calls := 0
	loader := func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("secret store unavailable")
		}
		return pemBytes, nil
	}
	src := NewAppTokenSource(1, 1, loader, WithAppBaseURL(srv.URL))

	_, err := src.Token(context.Background())
	require.Error(t, err)

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghs_ok", tok)
	assert.Equal(t, 2, calls)
}

func TestAppTokenSource_BadPEM(t *testing.T) {
	src := NewAppTokenSource(1, 1, func(context.Context) ([]byte, error) { return []byte("nope"), nil })
	_, err := src.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse GitHub App private key")
}

func TestClientUsesAppToken(t *testing.T) {
	_, pemBytes := testKey(t)
	f, srv := newFakeGitHub(t)
	f.handle("POST /app/installations/7/access_tokens", http.StatusCreated,
		fmt.Sprintf(`{"token":"ghs_app","expires_at":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339)))
	f.handle("GET /repos/acme/widgets/pulls/1", http.StatusOK, `{"head":{"sha":"s"}}`)

	src := NewAppTokenSource(3, 7, func(context.Context) ([]byte, error) { return pemBytes, nil }, WithAppBaseURL(srv.URL))
	c, err := NewClient(ClientConfig{Tokens: src, BaseURL: srv.URL, RequestsPerSecond: 50})
	require.NoError(t, err)

	_, err = c.HeadSHA(context.Background(), "acme", "widgets", 1)
	require.NoError(t, err)
	assert.Equal(t, "Bearer ghs_app", f.last().Auth)
}
