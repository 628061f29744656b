package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/prreviewer/internal/config"
	"github.com/prreviewer/internal/database"
	"github.com/prreviewer/internal/dedupe"
	"github.com/prreviewer/internal/github"
	"github.com/prreviewer/internal/logging"
	"github.com/prreviewer/internal/metrics"
	"github.com/prreviewer/internal/review"
	"github.com/prreviewer/internal/reviewer"
)

// runtime holds everything built from the configuration.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	github  *github.Client
	service *review.Service
	// purger is set when dedupe records live in a SQL store.
	purger *dedupe.SQLStore
	db     *sql.DB
}

func (r *runtime) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type buildOptions struct {
	dryRun   bool
	registry prometheus.Registerer
}

// buildRuntime wires the review service and its collaborators.
func buildRuntime(ctx context.Context, cfg *config.Config, opts buildOptions) (*runtime, error) {
	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(opts.registry),
	}

	rt.github, err = newGitHubClient(cfg.GitHub)
	if err != nil {
		return nil, err
	}

	store, err := rt.openDedupeStore(ctx)
	if err != nil {
		return nil, err
	}

	rv, err := reviewer.New(ctx, reviewer.Options{
		Provider:    reviewer.Provider(cfg.Reviewer.Provider),
		Model:       cfg.Reviewer.Model,
		APIKey:      cfg.Reviewer.APIKey,
		BaseURL:     cfg.Reviewer.BaseURL,
		MaxTokens:   cfg.Reviewer.MaxTokens,
		Temperature: cfg.Reviewer.Temperature,
	}, cfg.Reviewer.RetryConfig())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create reviewer: %w", err)
	}

	deps := review.Dependencies{
		Admitter: dedupe.NewGuard(store, dedupe.WithTTL(cfg.Dedupe.TTL)),
		Diffs:    rt.github,
		Checks:   rt.github,
		Reviews:  rt.github,
		Reviewer: rv,
	}
	if opts.dryRun {
		sink := review.NewDryRunSink(logger)
		deps.Checks = sink
		deps.Reviews = sink
	}

	rt.service, err = review.NewService(deps, review.Config{
		MaxDiffChars:  cfg.Reviewer.MaxDiffChars,
		Concurrency:   cfg.Reviewer.Concurrency,
		ReviewTimeout: cfg.Reviewer.Timeout,
	}, review.WithMetrics(rt.metrics), review.WithLogger(logger))
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func newGitHubClient(cfg config.GitHubConfig) (*github.Client, error) {
	var tokens github.TokenSource = github.StaticToken(cfg.Token)
	if cfg.UsesApp() {
		var appOpts []github.AppTokenOption
		if cfg.BaseURL != "" {
			appOpts = append(appOpts, github.WithAppBaseURL(cfg.BaseURL))
		}
		tokens = github.NewAppTokenSource(cfg.AppID, cfg.InstallationID, github.FileKeyLoader(cfg.PrivateKeyPath), appOpts...)
	}
	return github.NewClient(github.ClientConfig{
		Tokens:            tokens,
		BaseURL:           cfg.BaseURL,
		CheckName:         cfg.CheckName,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	})
}

// openDedupeStore returns the configured store. SQL stores are migrated so a
// fresh database works without a separate migrate step.
func (r *runtime) openDedupeStore(ctx context.Context) (dedupe.Store, error) {
	driver := r.cfg.Dedupe.Driver
	if driver == config.DedupeMemory {
		r.logger.Warn().Msg("Using in-memory dedupe store; duplicates are only suppressed within this process")
		return dedupe.NewMemoryStore(), nil
	}

	db, store, err := openSQLStore(ctx, driver, r.cfg.Dedupe.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	r.db = db
	r.purger = store
	return store, nil
}

func openSQLStore(ctx context.Context, driver, dsn string) (*sql.DB, *dedupe.SQLStore, error) {
	db, err := database.Open(ctx, driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dedupe store: %w", err)
	}
	store, err := dedupe.NewSQLStore(db, dedupe.Dialect(driver))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store, nil
}
