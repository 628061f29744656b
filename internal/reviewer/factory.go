package reviewer

import (
	"context"

	"github.com/prreviewer/internal/retry"
)

// New builds a Reviewer for the configured provider.
func New(ctx context.Context, opts Options, retryConfig retry.RetryConfig) (*Reviewer, error) {
	var completer Completer
	switch opts.Provider {
	case ProviderClaude, "":
		completer = NewClaudeCompleter(opts)
	default:
		lc, err := NewLangChainCompleter(ctx, opts)
		if err != nil {
			return nil, err
		}
		completer = lc
	}
	return NewReviewer(completer, retryConfig), nil
}
