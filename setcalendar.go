package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskflow/pkg/auth"
	"github.com/harrisonrobin/taskflow/pkg/config"
	"github.com/harrisonrobin/taskflow/pkg/google"
	"github.com/harrisonrobin/taskflow/pkg/model"
)

var errNoPersistentStore = errors.New("user calendars need postgres; set postgres.host")

func setCalendarCmd(configPath *string) *cobra.Command {
	var (
		user    string
		resolve bool
	)
	cmd := &cobra.Command{
		Use:   "set-calendar <calendar>",
		Short: "Set the default calendar, or a user's calendar with --user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			calendarID := args[0]

			if resolve {
				cfg, logger, closer, err := loadConfig(*configPath)
				if err != nil {
					return err
				}
				defer closer.Close()
				client, err := auth.GetClient(ctx, logger, googleFiles(cfg), google.Scopes)
				if err != nil {
					return err
				}
				srv, err := google.NewService(ctx, client)
				if err != nil {
					return err
				}
				if calendarID, err = google.LookupCalendar(ctx, srv, calendarID); err != nil {
					return err
				}
			}

			if user != "" {
				a, err := newApp(ctx, *configPath)
				if err != nil {
					return err
				}
				defer a.close()
				row, err := a.setUserCalendar(ctx, user, calendarID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Calendar for %s set to: %s\n", row.UserID, row.CalendarID)
				return nil
			}

			path, err := config.GetConfigPath(*configPath)
			if err != nil {
				return err
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return fmt.Errorf("error reading config: %w", err)
			}
			cfg.Calendar.DefaultCalendarID = calendarID
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", calendarID)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "store the calendar for this user instead of the default")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "look the calendar up by name in the authorized account")
	return cmd
}

// setUserCalendar stores a user's calendar in postgres, creating the
// schema first on a fresh database.
func (a *app) setUserCalendar(ctx context.Context, userID, calendarID string) (model.UserCalendar, error) {
	if !a.cfg.Postgres.Enabled() {
		return model.UserCalendar{}, errNoPersistentStore
	}
	if err := a.store.EnsureSchema(ctx); err != nil {
		a.logger.Error().Err(err).Msg("failed to ensure schema")
		return model.UserCalendar{}, err
	}
	return a.service.SetUserCalendar(ctx, userID, calendarID)
}
