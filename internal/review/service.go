// Package review drives one pull request review from admission to the
// closed status check.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/prreviewer/internal/diff"
	"github.com/prreviewer/internal/logging"
	"github.com/prreviewer/internal/metrics"
)

const tracerName = "github.com/prreviewer/internal/review"

// Dependencies are the collaborators a Service talks to.
type Dependencies struct {
	Admitter Admitter
	Diffs    DiffSource
	Checks   CheckSink
	Reviews  ReviewSink
	Reviewer Reviewer
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Admitter == nil {
		missing = append(missing, "admitter")
	}
	if d.Diffs == nil {
		missing = append(missing, "diff source")
	}
	if d.Checks == nil {
		missing = append(missing, "check sink")
	}
	if d.Reviews == nil {
		missing = append(missing, "review sink")
	}
	if d.Reviewer == nil {
		missing = append(missing, "reviewer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("review service is missing dependencies: %v", missing)
	}
	return nil
}

// Service represents the review orchestration service
type Service struct {
	deps    Dependencies
	config  Config
	parser  *diff.Parser
	metrics *metrics.Metrics
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the base logger for review runs.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewService creates a new review service
func NewService(deps Dependencies, config Config, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		deps:   deps,
		config: config.withDefaults(),
		parser: diff.NewParser(),
		logger: log.Logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProcessReview runs one task to completion. A duplicate task returns
// StatusSkipped with a nil error. Once a status check has been opened, any
// failure closes it with ConclusionFailure before the error is returned.
func (s *Service) ProcessReview(ctx context.Context, task Task) (Result, error) {
	start := time.Now()
	if err := task.Validate(); err != nil {
		return Result{Status: StatusFailed}, err
	}

	key := task.DedupeKey()
	rl := logging.StartReviewLogging(s.logger, logging.TaskFields{
		Owner:     task.Owner,
		Repo:      task.Repo,
		PRNumber:  task.PRNumber,
		HeadSHA:   task.HeadSHA,
		DedupeKey: key,
	})
	defer rl.Close()
	ctx = logging.WithReviewLogger(ctx, rl)

	ctx, span := s.tracer.Start(ctx, "review.process", trace.WithAttributes(
		attribute.String("review.dedupe_key", key),
		attribute.String("review.run_id", rl.RunID()),
	))
	defer span.End()

	result, err := s.process(ctx, task, rl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("review.status", string(result.Status)),
		attribute.Int("review.comments", len(result.Comments)),
	)

	var elapsed float64
	if result.Status != StatusSkipped {
		elapsed = time.Since(start).Seconds()
	}
	s.metrics.ObserveReview(string(result.Status), len(result.Comments), elapsed)
	return result, err
}

func (s *Service) process(ctx context.Context, task Task, rl *logging.ReviewLogger) (Result, error) {
	rl.LogSection("ADMISSION")
	admitted, err := s.deps.Admitter.Admit(ctx, task.DedupeKey())
	if err != nil {
		rl.LogError("Dedupe check failed", err)
		return Result{Status: StatusFailed}, fmt.Errorf("%w: %w", ErrDedupeStore, err)
	}
	if !admitted {
		rl.Log("Duplicate task, skipping")
		return Result{Status: StatusSkipped}, nil
	}

	rl.LogSection("STATUS CHECK")
	run, err := s.deps.Checks.OpenCheck(ctx, task.Owner, task.Repo, task.HeadSHA)
	if err != nil {
		rl.LogError("Failed to open status check", err)
		return Result{Status: StatusFailed}, fmt.Errorf("%w: open: %w", ErrCheckLifecycle, err)
	}
	rl.Log("✓ Opened check run %d", run.ID)

	comments, stats, err := s.reviewAndSubmit(ctx, task, rl)
	if err == nil {
		summary := successSummary(len(comments), stats)
		if cerr := s.deps.Checks.CloseCheck(ctx, run, ConclusionSuccess, summary); cerr != nil {
			rl.LogError("Failed to close status check", cerr)
			err = fmt.Errorf("%w: close: %w", ErrCheckLifecycle, cerr)
		} else {
			rl.Log("✓ Review complete with %d comment(s)", len(comments))
			return Result{Status: StatusReviewed, Comments: comments}, nil
		}
	}

	s.closeFailed(ctx, run, err, rl)
	return Result{Status: StatusFailed, Comments: comments}, err
}

// closeFailed closes run with a failure conclusion. It survives cancellation
// of ctx and never replaces the triggering error.
func (s *Service) closeFailed(ctx context.Context, run CheckRun, cause error, rl *logging.ReviewLogger) {
	ctx = context.WithoutCancel(ctx)
	if err := s.deps.Checks.CloseCheck(ctx, run, ConclusionFailure, failureSummary(cause)); err != nil {
		rl.LogError("Failed to close status check with failure", err)
		return
	}
	rl.Log("Closed check run %d with failure", run.ID)
}

func (s *Service) reviewAndSubmit(ctx context.Context, task Task, rl *logging.ReviewLogger) ([]Comment, diff.Stats, error) {
	reviewCtx := ctx
	if s.config.ReviewTimeout > 0 {
		var cancel context.CancelFunc
		reviewCtx, cancel = context.WithTimeout(ctx, s.config.ReviewTimeout)
		defer cancel()
	}

	comments, stats, err := s.review(reviewCtx, task, rl)
	if err != nil {
		return nil, stats, err
	}

	rl.LogSection("SUBMISSION")
	sub := Submission{
		Owner:       task.Owner,
		Repo:        task.Repo,
		PRNumber:    task.PRNumber,
		HeadSHA:     task.HeadSHA,
		Body:        BuildSummary(comments),
		Disposition: DispositionFor(comments),
		Comments:    comments,
	}
	if err := s.deps.Reviews.SubmitReview(reviewCtx, sub); err != nil {
		rl.LogError("Failed to submit review", err)
		return comments, stats, fmt.Errorf("%w: %w", ErrReviewSubmission, err)
	}
	rl.Log("✓ Submitted %s review with %d comment(s)", sub.Disposition, len(comments))
	return comments, stats, nil
}

// review fetches and parses the diff, then reviews every file with hunks.
// All per-file calls finish before it returns.
func (s *Service) review(ctx context.Context, task Task, rl *logging.ReviewLogger) ([]Comment, diff.Stats, error) {
	rl.LogSection("DIFF")
	raw, err := s.deps.Diffs.FetchDiff(ctx, task.Owner, task.Repo, task.PRNumber)
	if err != nil {
		rl.LogError("Failed to fetch diff", err)
		return nil, diff.Stats{}, fmt.Errorf("%w: %w", ErrDiffFetch, err)
	}

	stats, err := diff.ComputeStats(raw)
	if err != nil {
		rl.Warn("Diff statistics unavailable: %v", err)
	}

	files := s.parser.Parse(raw).Reviewable()
	rl.Log("Diff has %d reviewable file(s), %s", len(files), stats)

	rl.LogSection("AI CODE REVIEW")
	perFile := make([][]Comment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, file := range files {
		g.Go(func() error {
			comments, err := s.reviewFile(gctx, raw, file, rl)
			if err != nil {
				return err
			}
			perFile[i] = comments
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	var comments []Comment
	for _, fc := range perFile {
		comments = append(comments, fc...)
	}
	return comments, stats, nil
}

func (s *Service) reviewFile(ctx context.Context, raw string, file diff.FileDiff, rl *logging.ReviewLogger) ([]Comment, error) {
	ctx, span := s.tracer.Start(ctx, "review.file", trace.WithAttributes(
		attribute.String("review.file", file.Path),
	))
	defer span.End()

	segment, ok := diff.FileSegment(raw, file.Path)
	if !ok {
		rl.Warn("No diff segment found for %s, skipping", file.Path)
		return nil, nil
	}
	text := diff.Truncate(segment, s.config.MaxDiffChars)

	findings, err := s.deps.Reviewer.ReviewFile(ctx, file.Path, text)
	s.metrics.ObserveReviewerCall(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rl.LogError(fmt.Sprintf("Reviewer failed for %s", file.Path), err)
		return nil, &FileError{Path: file.Path, Err: err}
	}

	comments := retain(file, findings, rl)
	span.SetAttributes(attribute.Int("review.findings", len(comments)))
	rl.Log("  %s: %d finding(s), %d retained", file.Path, len(findings), len(comments))
	return comments, nil
}

// retain drops findings without a positive line or a body. Lines outside the
// file's hunks are kept but logged, since the reviewer may still be right.
func retain(file diff.FileDiff, findings []Finding, rl *logging.ReviewLogger) []Comment {
	var out []Comment
	for _, f := range findings {
		if !f.Valid() {
			continue
		}
		if !file.Covers(f.Line) {
			rl.Warn("Finding for %s at line %d is outside the diff", file.Path, f.Line)
		}
		out = append(out, Comment{Path: file.Path, Line: f.Line, Body: f.Body})
	}
	return out
}

func successSummary(count int, stats diff.Stats) string {
	summary := fmt.Sprintf("Review complete: %d comment(s)", count)
	if stats.Files > 0 {
		summary += "\n\n" + stats.String()
	}
	return summary
}

func failureSummary(err error) string {
	if err == nil {
		err = errors.New("unknown error")
	}
	return "Review failed: " + err.Error()
}
