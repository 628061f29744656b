package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/prreviewer/internal/config"
	"github.com/prreviewer/internal/jobqueue"
	"github.com/prreviewer/internal/server"
	"github.com/prreviewer/internal/webhook"
)

const stopTimeout = 30 * time.Second

// dispatcher is a webhook.Dispatcher with a lifecycle.
type dispatcher interface {
	webhook.Dispatcher
	Stop(ctx context.Context) error
}

// ServeCommand returns the CLI command for the webhook dispatcher
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Receive GitHub webhooks and dispatch reviews",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the HTTP server (overrides server.port)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, buildOptions{registry: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}
	defer rt.Close()

	d, err := startDispatcher(ctx, rt)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := d.Stop(stopCtx); err != nil {
			rt.logger.Error().Err(err).Msg("Dispatcher did not stop cleanly")
		}
	}()

	handler, err := webhook.NewHandler(cfg.Server.WebhookSecret, d,
		webhook.WithMetrics(rt.metrics), webhook.WithLogger(rt.logger))
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:     cfg.Server.Port,
		Webhooks: handler,
		Logger:   &rt.logger,
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// startDispatcher picks the in-process pool or the River queue.
func startDispatcher(ctx context.Context, rt *runtime) (dispatcher, error) {
	qc := rt.cfg.Queue
	// Workers outlive the signal so Stop can drain them.
	ctx = context.WithoutCancel(ctx)
	if qc.Mode == config.QueueInline {
		d := jobqueue.NewInlineDispatcher(rt.service, qc.QueueConfig)
		d.Start(ctx)
		rt.logger.Info().Int("workers", qc.MaxWorkers).Msg("Dispatching reviews in process")
		return d, nil
	}

	var opts []jobqueue.Option
	if rt.cfg.Server.EmbeddedWorkers {
		opts = append(opts, jobqueue.WithProcessor(rt.service))
		if rt.purger != nil {
			opts = append(opts, jobqueue.WithPurger(rt.purger))
		}
	}
	jq, err := jobqueue.NewJobQueue(ctx, qc.DatabaseURL, qc.QueueConfig, opts...)
	if err != nil {
		return nil, err
	}
	if err := jq.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start job queue: %w", err)
	}
	rt.logger.Info().Bool("embedded_workers", rt.cfg.Server.EmbeddedWorkers).Msg("Dispatching reviews through River")
	return jq, nil
}
