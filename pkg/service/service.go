// Package service is the only writer of task state. Transitions are
// status-guarded conditional updates; notifications follow the durable
// write and their failures are logged, never returned.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/calmap"
	"github.com/harrisonrobin/taskflow/pkg/lifecycle"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

// Store is the persistence the service needs. Both store.Postgres and
// store.Memory satisfy it.
type Store interface {
	InsertTask(ctx context.Context, task *model.Task) (int64, error)
	GetTaskByScheduleID(ctx context.Context, scheduleID string) (*model.Task, error)
	ListTasks(ctx context.Context, filter store.Filter) ([]*model.Task, error)
	UpdateSyncFields(ctx context.Context, task *model.Task) error
	MarkWaitingVerify(ctx context.Context, id int64, at time.Time) (int64, error)
	Approve(ctx context.Context, id int64, verifierID string, at time.Time) (int64, error)
	Reject(ctx context.Context, id int64, verifierID, reason string, at time.Time) (int64, error)
	StampReminder(ctx context.Context, id int64, kind model.ReminderKind, at time.Time) error
	ListUserCalendars(ctx context.Context) ([]model.UserCalendar, error)
	UpsertUserCalendar(ctx context.Context, row model.UserCalendar) error
}

// CalendarWriter creates calendar entries for manually created tasks.
type CalendarWriter interface {
	CreateSchedule(ctx context.Context, calendarID string, draft model.ScheduleDraft) (string, error)
}

type Notifier interface {
	NotifyExecutor(ctx context.Context, task *model.Task, title, body string, actions []model.Action) error
	NotifyVerifiers(ctx context.Context, task *model.Task, recipients []string) error
	NotifyResult(ctx context.Context, task *model.Task, approved bool, reason string) error
}

// Settings holds the raw configuration surface. Mapping and verifier
// strings are parsed on every call that needs them.
type Settings struct {
	DefaultCalendarID string
	UserCalendarMap   string
	GlobalVerifiers   string
	ReminderCooldown  time.Duration
}

type TaskService struct {
	logger   zerolog.Logger
	store    Store
	calendar CalendarWriter
	notifier Notifier
	settings Settings
	now      func() time.Time
}

type Option func(*TaskService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

// WithCalendarWriter enables external calendar entries for manual tasks.
func WithCalendarWriter(w CalendarWriter) Option {
	return func(s *TaskService) { s.calendar = w }
}

func NewTaskService(
	logger zerolog.Logger,
	st Store,
	notifier Notifier,
	settings Settings,
	opts ...Option,
) *TaskService {
	s := &TaskService{
		logger:   logger.With().Str("component", "service").Logger(),
		store:    st,
		notifier: notifier,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) loadBySchedule(ctx context.Context, scheduleID string) (*model.Task, error) {
	task, err := s.store.GetTaskByScheduleID(ctx, scheduleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", scheduleID, err)
	}
	return task, nil
}

// SubmitForVerification moves a PENDING task to WAITING_VERIFY on behalf
// of its executor.
func (s *TaskService) SubmitForVerification(ctx context.Context, scheduleID, executorID string) (*model.Task, error) {
	task, err := s.loadBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanAdvanceToVerify(task, executorID) {
		if task.ExecutorID != executorID || executorID == "" {
			return nil, errNotExecutor
		}
		return nil, errInvalidStatus
	}

	now := s.now()
	changed, err := s.store.MarkWaitingVerify(ctx, task.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to submit task %s: %w", scheduleID, err)
	}
	if changed == 0 {
		s.logger.Warn().
			Str("schedule_id", scheduleID).
			Str("user_id", executorID).
			Msg("submit lost a concurrent status change")
		return nil, errStatusChanged
	}

	task.Status = model.StatusWaitingVerify
	task.CompletionTime = model.TimePtr(now)
	task.RejectReason = ""
	task.UpdatedAt = now
	s.logger.Info().
		Str("schedule_id", scheduleID).
		Str("user_id", executorID).
		Msg("task submitted for verification")

	if err := s.notifier.NotifyVerifiers(ctx, task, s.verifierRecipients(task)); err != nil {
		s.logger.Error().Err(err).Str("schedule_id", scheduleID).Msg("failed to notify verifiers")
	}
	return task, nil
}

// DefaultRejectReason replaces a blank reason on reject.
const DefaultRejectReason = "Returned for rework"

// VerifyTask approves or rejects a task that is waiting for verification.
// A reject returns the task to PENDING and bumps its redo count.
func (s *TaskService) VerifyTask(ctx context.Context, scheduleID, managerID string, approve bool, reason string) (*model.Task, error) {
	task, err := s.loadBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	verifiers := calmap.ParseUserList(s.settings.GlobalVerifiers)
	if !lifecycle.CanVerify(task, managerID, verifiers) {
		if task.Status != model.StatusWaitingVerify {
			return nil, errInvalidStatus
		}
		return nil, errNotVerifier
	}

	now := s.now()
	var changed int64
	if approve {
		changed, err = s.store.Approve(ctx, task.ID, managerID, now)
	} else {
		if strings.TrimSpace(reason) == "" {
			reason = DefaultRejectReason
		}
		changed, err = s.store.Reject(ctx, task.ID, managerID, reason, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify task %s: %w", scheduleID, err)
	}
	if changed == 0 {
		s.logger.Warn().
			Str("schedule_id", scheduleID).
			Str("user_id", managerID).
			Bool("approve", approve).
			Msg("verify lost a concurrent status change")
		return nil, errStatusChanged
	}

	task.VerifyTime = model.TimePtr(now)
	task.VerifierID = managerID
	task.UpdatedAt = now
	if approve {
		task.Status = model.StatusCompleted
		task.RejectReason = ""
	} else {
		task.Status = model.StatusPending
		task.RejectReason = reason
		task.RedoCount++
	}
	s.logger.Info().
		Str("schedule_id", scheduleID).
		Str("user_id", managerID).
		Bool("approve", approve).
		Int("redo_count", task.RedoCount).
		Msg("task verified")

	if err := s.notifier.NotifyResult(ctx, task, approve, task.RejectReason); err != nil {
		s.logger.Error().Err(err).Str("schedule_id", scheduleID).Msg("failed to notify verification result")
	}
	return task, nil
}

// verifierRecipients is the creator plus every global verifier, deduped.
func (s *TaskService) verifierRecipients(task *model.Task) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(task.CreatorID)
	for _, id := range calmap.ParseUserList(s.settings.GlobalVerifiers) {
		add(id)
	}
	return out
}

// HandleInteraction routes an inbound card action to its transition.
func (s *TaskService) HandleInteraction(ctx context.Context, in model.Interaction) (*model.Task, error) {
	if in.UserID == "" || in.ScheduleID == "" || in.Action == "" {
		return nil, newError(KindBadRequest, "MISSING_FIELDS", "user_id, schedule_id and action are required")
	}
	switch in.Action {
	case model.ActionComplete:
		return s.SubmitForVerification(ctx, in.ScheduleID, in.UserID)
	case model.ActionPass:
		return s.VerifyTask(ctx, in.ScheduleID, in.UserID, true, "")
	case model.ActionReject:
		return s.VerifyTask(ctx, in.ScheduleID, in.UserID, false, in.Reason)
	default:
		return nil, newError(KindBadRequest, "UNSUPPORTED_ACTION", fmt.Sprintf("unsupported action %q", in.Action))
	}
}

func (s *TaskService) GetTask(ctx context.Context, scheduleID string) (*model.Task, error) {
	return s.loadBySchedule(ctx, scheduleID)
}

func (s *TaskService) ListTasks(ctx context.Context, filter store.Filter) ([]*model.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, newError(KindBadRequest, "INVALID_STATUS_FILTER", fmt.Sprintf("unknown status %q", filter.Status))
	}
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetKpi aggregates over all tasks, or one executor's tasks when
// executorID is set.
func (s *TaskService) GetKpi(ctx context.Context, executorID string) (model.KpiSummary, error) {
	tasks, err := s.store.ListTasks(ctx, store.Filter{ExecutorID: executorID})
	if err != nil {
		return model.KpiSummary{}, fmt.Errorf("failed to list tasks for kpi: %w", err)
	}
	return lifecycle.AggregateKpi(tasks, s.now()), nil
}
