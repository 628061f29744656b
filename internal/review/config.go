package review

import (
	"time"

	"github.com/prreviewer/internal/diff"
)

// Config holds the review service configuration
type Config struct {
	// MaxDiffChars bounds the per-file diff text sent to the reviewer.
	MaxDiffChars int
	// Concurrency is the number of files reviewed at once.
	Concurrency int
	// ReviewTimeout bounds the reviewing steps of one task. Zero disables it.
	ReviewTimeout time.Duration
}

// DefaultReviewConfig returns a sensible default configuration for reviews
func DefaultReviewConfig() Config {
	return Config{
		MaxDiffChars:  diff.DefaultMaxFileDiffChars,
		Concurrency:   4,
		ReviewTimeout: 10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultReviewConfig()
	if c.MaxDiffChars <= 0 {
		c.MaxDiffChars = d.MaxDiffChars
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.ReviewTimeout < 0 {
		c.ReviewTimeout = 0
	}
	return c
}
