package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the task and user calendar tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.Postgres.Enabled() {
				a.logger.Warn().Msg("postgres not configured, nothing to migrate")
				return nil
			}
			if err := a.store.EnsureSchema(ctx); err != nil {
				a.logger.Error().Err(err).Msg("failed to ensure schema")
				return err
			}
			a.logger.Info().Msg("schema is up to date")
			return nil
		},
	}
}
