package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskflow/pkg/auth"
	"github.com/harrisonrobin/taskflow/pkg/google"
)

func authCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cfg, logger, closer, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closer.Close()

			files := googleFiles(cfg)
			if err := auth.Authorize(ctx, logger, files, google.Scopes); err != nil {
				logger.Error().Err(err).Msg("authentication failed")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", files.TokenFile)
			return nil
		},
	}
}
