package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskFields identifies one review task in log output.
type TaskFields struct {
	Owner     string
	Repo      string
	PRNumber  int
	HeadSHA   string
	DedupeKey string
}

// ReviewLogger manages logging for a single review run. Every line carries
// the task identity and a run id so concurrent runs can be told apart.
type ReviewLogger struct {
	runID     string
	logger    zerolog.Logger
	mutex     sync.Mutex
	startTime time.Time
}

// StartReviewLogging creates a logger for one review run on top of base.
func StartReviewLogging(base zerolog.Logger, task TaskFields) *ReviewLogger {
	runID := uuid.NewString()
	logger := base.With().
		Str("run_id", runID).
		Str("owner", task.Owner).
		Str("repo", task.Repo).
		Int("pr", task.PRNumber).
		Str("head_sha", task.HeadSHA).
		Str("dedupe_key", task.DedupeKey).
		Logger()

	return &ReviewLogger{
		runID:     runID,
		logger:    logger,
		startTime: time.Now(),
	}
}

// RunID returns the identifier attached to every line of this run.
func (r *ReviewLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Zerolog exposes the underlying structured logger.
func (r *ReviewLogger) Zerolog() *zerolog.Logger {
	if r == nil {
		l := zerolog.Nop()
		return &l
	}
	return &r.logger
}

// Log writes a message to the review log
func (r *ReviewLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Info().
		Dur("elapsed", time.Since(r.startTime).Round(time.Millisecond)).
		Msg(fmt.Sprintf(format, args...))
}

// Warn writes a warning to the review log
func (r *ReviewLogger) Warn(format string, args ...interface{}) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// LogSection writes a section header to the log
func (r *ReviewLogger) LogSection(title string) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Info().Str("section", title).Msg(strings.Repeat("=", 10) + " " + title)
}

// LogRequest records a reviewer request for one file at debug level.
func (r *ReviewLogger) LogRequest(path, model string, prompt string) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Debug().
		Str("file", path).
		Str("model", model).
		Int("prompt_chars", len(prompt)).
		Msg("reviewer request")
}

// LogResponse records a reviewer response for one file at debug level.
func (r *ReviewLogger) LogResponse(path string, response string) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Debug().
		Str("file", path).
		Int("response_chars", len(response)).
		Str("preview", truncateString(response, 200)).
		Msg("reviewer response")
}

// LogUsage records token usage for one reviewer call.
func (r *ReviewLogger) LogUsage(path string, inputTokens, outputTokens int64) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Info().
		Str("file", path).
		Int64("input_tokens", inputTokens).
		Int64("output_tokens", outputTokens).
		Msg("token usage")
}

// LogError writes an error with context
func (r *ReviewLogger) LogError(context string, err error) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Error().Err(err).Msg(context)
}

// Close writes the run footer.
func (r *ReviewLogger) Close() {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logger.Info().
		Dur("duration", time.Since(r.startTime).Round(time.Millisecond)).
		Msg("review run finished")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
