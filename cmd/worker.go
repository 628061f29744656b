package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/prreviewer/internal/config"
	"github.com/prreviewer/internal/jobqueue"
)

// WorkerCommand returns the CLI command for a standalone queue consumer
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Work review jobs from the River queue",
		Action: runWorker,
	}
}

func runWorker(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Queue.Mode != config.QueueRiver {
		return errors.New("worker requires queue.mode = \"river\"")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, buildOptions{registry: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := []jobqueue.Option{jobqueue.WithProcessor(rt.service)}
	if rt.purger != nil {
		opts = append(opts, jobqueue.WithPurger(rt.purger))
	}
	jq, err := jobqueue.NewJobQueue(ctx, cfg.Queue.DatabaseURL, cfg.Queue.QueueConfig, opts...)
	if err != nil {
		return err
	}
	// Stop below drains in-flight jobs after the signal.
	if err := jq.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	rt.logger.Info().Int("workers", cfg.Queue.MaxWorkers).Msg("Worker started")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return jq.Stop(stopCtx)
}
