package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/prreviewer/internal/config"
	"github.com/prreviewer/internal/jobqueue"
)

// MigrateCommand returns the CLI command that prepares database schemas
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Create the River schema and the dedupe table",
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ctx := c.Context

	if cfg.Queue.Mode == config.QueueRiver {
		if err := jobqueue.Migrate(ctx, cfg.Queue.DatabaseURL); err != nil {
			return err
		}
		fmt.Println("River schema is up to date")
	}

	if cfg.Dedupe.Driver != config.DedupeMemory {
		db, store, err := openSQLStore(ctx, cfg.Dedupe.Driver, cfg.Dedupe.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("Dedupe table is up to date")
	}
	return nil
}
