package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/prreviewer/internal/logging"
)

// RetryConfig configures retry behavior with exponential backoff
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries"` // Retries after the first attempt (default: 3)
	BaseDelay  time.Duration `koanf:"base_delay"`  // Delay before the first retry (default: 1s)
	MaxDelay   time.Duration `koanf:"max_delay"`   // Upper bound for any delay (default: 30s)
	Multiplier float64       `koanf:"multiplier"`  // Exponential backoff multiplier (default: 2.0)
	Jitter     bool          `koanf:"jitter"`      // Spread delays by up to 10% (default: true)
	LogRetries bool          `koanf:"log_retries"` // Log every attempt (default: true)

	// Retryable decides whether a failed attempt is worth repeating. Nil
	// retries every error.
	Retryable func(error) bool `koanf:"-"`
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
	Success       bool
	RetryReasons  []string
}

// DefaultRetryConfig returns a retry configuration with sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
		LogRetries: true,
	}
}

// LLMRetryConfig returns a retry configuration for model calls. Only
// transient errors are retried.
func LLMRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.5,
		Jitter:     true,
		LogRetries: true,
		Retryable:  IsRetryableError,
	}
}

// RetryWithBackoff executes an operation with exponential backoff retry logic
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation func() error, logger *logging.ReviewLogger) RetryResult {
	return RetryWithBackoffAndReason(ctx, config, func() (error, string) {
		err := operation()
		reason := "unknown_error"
		if err != nil {
			reason = err.Error()
		}
		return err, reason
	}, logger)
}

// Do runs operation with RetryWithBackoff and returns its last value.
func Do[T any](ctx context.Context, config RetryConfig, logger *logging.ReviewLogger, operation func(context.Context) (T, error)) (T, error) {
	var value T
	result := RetryWithBackoff(ctx, config, func() error {
		v, err := operation(ctx)
		if err == nil {
			value = v
		}
		return err
	}, logger)
	if !result.Success {
		var zero T
		return zero, result.LastError
	}
	return value, nil
}

// RetryWithBackoffAndReason executes an operation with exponential backoff retry logic and custom reason tracking
func RetryWithBackoffAndReason(ctx context.Context, config RetryConfig, operation func() (error, string), logger *logging.ReviewLogger) RetryResult {
	startTime := time.Now()
	result := RetryResult{RetryReasons: make([]string, 0)}
	logf := func(format string, args ...interface{}) {
		if config.LogRetries {
			logger.Log(format, args...)
		}
	}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1
		if attempt > 0 {
			logf("Retrying operation (attempt %d/%d)", attempt+1, config.MaxRetries+1)
		}

		err, reason := operation()
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)
			if attempt > 0 {
				logf("Operation succeeded after %d retries (total duration: %v)", attempt, result.TotalDuration)
			}
			return result
		}

		result.LastError = err
		result.RetryReasons = append(result.RetryReasons, reason)

		if attempt >= config.MaxRetries {
			result.TotalDuration = time.Since(startTime)
			logf("Operation failed after %d attempts (total duration: %v): %v", result.Attempts, result.TotalDuration, err)
			return result
		}

		if config.Retryable != nil && !config.Retryable(err) {
			result.TotalDuration = time.Since(startTime)
			logf("Operation failed with a permanent error: %v", err)
			return result
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			logf("Operation cancelled during retry %d: %v", attempt+1, ctx.Err())
			return result
		}

		delay := calculateDelay(config, attempt)
		logf("Operation failed (attempt %d/%d): %v; waiting %v", attempt+1, config.MaxRetries+1, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			logf("Operation cancelled during backoff delay: %v", ctx.Err())
			return result
		case <-timer.C:
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay calculates the delay for the next retry attempt using exponential backoff
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(config.BaseDelay)
		}
	}

	return time.Duration(delay)
}

var retryableErrors = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"rate limit",
	"overloaded",
	"429",
	"500",
	"502",
	"503",
	"504",
	"529",
	"dns lookup failed",
	"no such host",
	"network unreachable",
	"broken pipe",
	"unexpected eof",
	"context deadline exceeded",
}

// IsRetryableError determines if an error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}
