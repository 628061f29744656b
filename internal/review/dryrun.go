package review

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DryRunSink logs check and review calls instead of performing them.
type DryRunSink struct {
	logger zerolog.Logger
	nextID atomic.Int64
}

// NewDryRunSink creates a sink that writes to logger.
func NewDryRunSink(logger zerolog.Logger) *DryRunSink {
	return &DryRunSink{logger: logger}
}

// OpenCheck implements CheckSink.
func (d *DryRunSink) OpenCheck(_ context.Context, owner, repo, headSHA string) (CheckRun, error) {
	run := CheckRun{Owner: owner, Repo: repo, ID: d.nextID.Add(1)}
	d.logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Str("head_sha", headSHA).
		Int64("check_run_id", run.ID).
		Msg("dry run: open check")
	return run, nil
}

// CloseCheck implements CheckSink.
func (d *DryRunSink) CloseCheck(_ context.Context, run CheckRun, conclusion Conclusion, summary string) error {
	d.logger.Info().
		Int64("check_run_id", run.ID).
		Str("conclusion", string(conclusion)).
		Str("summary", summary).
		Msg("dry run: close check")
	return nil
}

// SubmitReview implements ReviewSink.
func (d *DryRunSink) SubmitReview(_ context.Context, sub Submission) error {
	d.logger.Info().
		Str("owner", sub.Owner).
		Str("repo", sub.Repo).
		Int("pr", sub.PRNumber).
		Str("event", string(sub.Disposition)).
		Int("comments", len(sub.Comments)).
		Msg("dry run: submit review")
	d.logger.Info().Msg(sub.Body)
	for _, c := range sub.Comments {
		d.logger.Info().Str("path", c.Path).Int("line", c.Line).Msg(c.Body)
	}
	return nil
}
