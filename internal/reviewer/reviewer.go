// Package reviewer asks a language model to critique one file's diff and
// turns the reply into findings.
package reviewer

import (
	"context"
	"fmt"

	"github.com/prreviewer/internal/logging"
	"github.com/prreviewer/internal/retry"
	"github.com/prreviewer/internal/review"
)

// Completion is one model reply.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Completer sends a system prompt and one user message to a model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
	Model() string
}

// Reviewer implements review.Reviewer on top of a Completer, retrying
// transient failures.
type Reviewer struct {
	completer   Completer
	retryConfig retry.RetryConfig
}

var _ review.Reviewer = (*Reviewer)(nil)

// NewReviewer wraps completer with retry.
func NewReviewer(completer Completer, retryConfig retry.RetryConfig) *Reviewer {
	return &Reviewer{completer: completer, retryConfig: retryConfig}
}

// ReviewFile implements review.Reviewer. An unparseable reply yields no
// findings. A transport failure after all retries is returned.
func (r *Reviewer) ReviewFile(ctx context.Context, path, diffText string) ([]review.Finding, error) {
	rl := logging.FromContext(ctx)
	user := UserMessage(path, diffText)
	rl.LogRequest(path, r.completer.Model(), user)

	completion, err := retry.Do(ctx, r.retryConfig, rl, func(ctx context.Context) (Completion, error) {
		return r.completer.Complete(ctx, SystemPrompt, user)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.completer.Model(), err)
	}

	rl.LogResponse(path, completion.Text)
	rl.LogUsage(path, completion.InputTokens, completion.OutputTokens)

	parsed := ParseFindings(completion.Text)
	if !parsed.Found {
		rl.Warn("Reviewer reply for %s held no findings array", path)
	} else if parsed.Repaired {
		rl.Log("Reviewer reply for %s needed JSON repair", path)
	}
	return parsed.Findings, nil
}
