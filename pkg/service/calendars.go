package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrisonrobin/taskflow/pkg/calmap"
	"github.com/harrisonrobin/taskflow/pkg/model"
)

func (s *TaskService) calendarOptions(ctx context.Context) (calmap.Options, error) {
	rows, err := s.store.ListUserCalendars(ctx)
	if err != nil {
		return calmap.Options{}, fmt.Errorf("failed to list user calendars: %w", err)
	}
	return calmap.Options{
		DefaultCalendarID: s.settings.DefaultCalendarID,
		RawMapping:        s.settings.UserCalendarMap,
		StorageRows:       rows,
	}, nil
}

// SyncTargets merges configured and stored calendar assignments into the
// list of calendars a sync run polls.
func (s *TaskService) SyncTargets(ctx context.Context) ([]model.SyncTarget, error) {
	opts, err := s.calendarOptions(ctx)
	if err != nil {
		return nil, err
	}
	return calmap.BuildSyncTargets(opts), nil
}

// ResolveCalendarID returns the calendar owned by userID, or the default.
func (s *TaskService) ResolveCalendarID(ctx context.Context, userID string) (string, error) {
	opts, err := s.calendarOptions(ctx)
	if err != nil {
		return "", err
	}
	return calmap.ResolveCalendarIDForUser(userID, opts), nil
}

func (s *TaskService) ListUserCalendars(ctx context.Context) ([]model.UserCalendar, error) {
	rows, err := s.store.ListUserCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user calendars: %w", err)
	}
	return rows, nil
}

// SetUserCalendar stores a per-user calendar override.
func (s *TaskService) SetUserCalendar(ctx context.Context, userID, calendarID string) (model.UserCalendar, error) {
	userID = strings.TrimSpace(userID)
	calendarID = strings.TrimSpace(calendarID)
	if userID == "" || calendarID == "" {
		return model.UserCalendar{}, newError(KindBadRequest, "MISSING_FIELDS", "user id and calendar id are required")
	}
	row := model.UserCalendar{UserID: userID, CalendarID: calendarID, UpdatedAt: s.now()}
	if err := s.store.UpsertUserCalendar(ctx, row); err != nil {
		return model.UserCalendar{}, fmt.Errorf("failed to store calendar for %s: %w", userID, err)
	}
	s.logger.Info().Str("user_id", userID).Str("calendar_id", calendarID).Msg("user calendar set")
	return row, nil
}
