package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sgfractal/eigen-workflow/internal/config"
	"github.com/sgfractal/eigen-workflow/internal/logging"
	"github.com/sgfractal/eigen-workflow/internal/repository"
)

func newMigrateCommand(logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the repository's schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			pool, err := initDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repository.Migrate(ctx, pool); err != nil {
				return err
			}
			logger.Info("schema migrated")
			return nil
		},
	}
}
