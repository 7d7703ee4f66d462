// Package syncer runs one reconciliation pass over every sync target and
// then sweeps reminders.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/google"
	"github.com/harrisonrobin/taskflow/pkg/index"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/reminder"
	"github.com/harrisonrobin/taskflow/pkg/service"
)

// Run statuses and skip reasons.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"

	ReasonNoSyncTargets = "no_sync_targets"
	ReasonInProgress    = "run_in_progress"
)

type Provider interface {
	ListSchedules(ctx context.Context, calendarID string) ([]model.ScheduleRef, error)
	GetSchedule(ctx context.Context, calendarID, scheduleID string) (model.ExternalSchedule, error)
}

type Tasks interface {
	SyncTargets(ctx context.Context) ([]model.SyncTarget, error)
	SyncScheduleTask(ctx context.Context, sched model.ExternalSchedule, target model.SyncTarget) (service.SyncResult, error)
}

type Reminders interface {
	Sweep(ctx context.Context) (reminder.Summary, error)
}

// ItemError records one calendar or schedule that failed in a run.
type ItemError struct {
	CalendarID string `json:"calendarId"`
	ScheduleID string `json:"scheduleId,omitempty"`
	Error      string `json:"error"`
}

type Summary struct {
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	CalendarsQueried   int `json:"calendarsQueried"`
	CalendarsSucceeded int `json:"calendarsSucceeded"`
	CalendarsFailed    int `json:"calendarsFailed"`

	SchedulesSeen   int `json:"schedulesSeen"`
	SchedulesUnique int `json:"schedulesUnique"`

	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`

	RemindersChecked int `json:"remindersChecked"`
	RemindersSent    int `json:"remindersSent"`

	Errors []ItemError `json:"errors,omitempty"`
}

// Skip builds the summary of a run that did not start.
func Skip(reason string, now time.Time) Summary {
	return Summary{Status: StatusSkipped, Reason: reason, StartedAt: now, FinishedAt: now}
}

type Syncer struct {
	logger    zerolog.Logger
	provider  Provider
	tasks     Tasks
	reminders Reminders
	now       func() time.Time
}

func New(logger zerolog.Logger, provider Provider, tasks Tasks, reminders Reminders) *Syncer {
	return &Syncer{
		logger:    logger.With().Str("component", "syncer").Logger(),
		provider:  provider,
		tasks:     tasks,
		reminders: reminders,
		now:       time.Now,
	}
}

// Run performs one sync pass. It never returns an error: per-calendar and
// per-schedule failures are recorded in the summary, and anything
// unexpected, panics included, marks the whole run failed.
func (s *Syncer) Run(ctx context.Context) (sum Summary) {
	sum.StartedAt = s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("sync run panicked")
			sum.Status = StatusFailed
			sum.Reason = fmt.Sprintf("panic: %v", r)
		}
		sum.FinishedAt = s.now()
		s.logSummary(sum)
	}()

	targets, err := s.tasks.SyncTargets(ctx)
	if err != nil {
		sum.Status, sum.Reason = StatusFailed, err.Error()
		return sum
	}
	if len(targets) == 0 {
		sum.Status, sum.Reason = StatusSkipped, ReasonNoSyncTargets
		return sum
	}

	seen := index.NewSeenSet()
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			sum.Status, sum.Reason = StatusFailed, err.Error()
			return sum
		}
		s.syncTarget(ctx, target, seen, &sum)
	}
	sum.SchedulesUnique = seen.Len()

	rem, err := s.reminders.Sweep(ctx)
	sum.RemindersChecked, sum.RemindersSent = rem.Checked, rem.Sent
	if err != nil {
		sum.Status, sum.Reason = StatusFailed, fmt.Sprintf("reminder sweep: %v", err)
		return sum
	}

	sum.Status = StatusOK
	return sum
}

func (s *Syncer) syncTarget(ctx context.Context, target model.SyncTarget, seen *index.SeenSet, sum *Summary) {
	sum.CalendarsQueried++
	refs, err := s.provider.ListSchedules(ctx, target.CalendarID)
	if err != nil {
		sum.CalendarsFailed++
		sum.Errors = append(sum.Errors, ItemError{CalendarID: target.CalendarID, Error: err.Error()})
		s.logger.Error().
			Err(err).
			Str("calendar_id", target.CalendarID).
			Str("user_id", target.UserID).
			Msg("failed to list schedules")
		return
	}
	sum.CalendarsSucceeded++

	for _, ref := range refs {
		sum.SchedulesSeen++
		if !seen.Mark(ref.ID) {
			continue
		}
		calendarID := ref.CalendarID
		if calendarID == "" {
			calendarID = target.CalendarID
		}

		sched, err := s.provider.GetSchedule(ctx, calendarID, ref.ID)
		if errors.Is(err, google.ErrScheduleNotFound) {
			sum.Skipped++
			continue
		}
		if err != nil {
			s.recordFailure(sum, calendarID, ref.ID, err)
			continue
		}
		if sched.ID == "" {
			sched.ID = ref.ID
		}
		if sched.CalendarID == "" {
			sched.CalendarID = calendarID
		}

		res, err := s.tasks.SyncScheduleTask(ctx, sched, target)
		if err != nil {
			s.recordFailure(sum, calendarID, ref.ID, err)
			continue
		}
		switch {
		case res.Inserted:
			sum.Inserted++
		case res.Updated:
			sum.Updated++
		default:
			sum.Skipped++
		}
	}
}

func (s *Syncer) recordFailure(sum *Summary, calendarID, scheduleID string, err error) {
	sum.Failed++
	sum.Errors = append(sum.Errors, ItemError{CalendarID: calendarID, ScheduleID: scheduleID, Error: err.Error()})
	s.logger.Error().
		Err(err).
		Str("calendar_id", calendarID).
		Str("schedule_id", scheduleID).
		Msg("failed to sync schedule")
}

func (s *Syncer) logSummary(sum Summary) {
	event := s.logger.Info()
	if sum.Status == StatusFailed {
		event = s.logger.Error()
	}
	event.
		Str("status", sum.Status).
		Str("reason", sum.Reason).
		Int("calendars_queried", sum.CalendarsQueried).
		Int("calendars_failed", sum.CalendarsFailed).
		Int("schedules_unique", sum.SchedulesUnique).
		Int("inserted", sum.Inserted).
		Int("updated", sum.Updated).
		Int("skipped", sum.Skipped).
		Int("reminders_sent", sum.RemindersSent).
		Dur("took", sum.FinishedAt.Sub(sum.StartedAt)).
		Msg("sync run finished")
}
