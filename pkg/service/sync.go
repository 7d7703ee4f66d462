package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/schedule"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

// Skip reasons reported by SyncScheduleTask.
const (
	SkipMissingScheduleID   = "missing_schedule_id"
	SkipMissingParticipants = "missing_participants"
)

type SyncResult struct {
	ScheduleID string `json:"scheduleId"`
	TaskID     int64  `json:"taskId,omitempty"`
	Inserted   bool   `json:"inserted"`
	Updated    bool   `json:"updated"`
	Skipped    bool   `json:"skipped"`
	Reason     string `json:"reason,omitempty"`
}

// SyncScheduleTask reconciles one external schedule into the task table.
// New schedules become PENDING tasks; known ones get their sync-owned
// fields overwritten. Status, redo count and reminder bookkeeping are
// never touched here.
func (s *TaskService) SyncScheduleTask(ctx context.Context, sched model.ExternalSchedule, target model.SyncTarget) (SyncResult, error) {
	scheduleID := strings.TrimSpace(sched.ID)
	res := SyncResult{ScheduleID: scheduleID}
	if scheduleID == "" {
		res.Skipped, res.Reason = true, SkipMissingScheduleID
		return res, nil
	}

	creatorID := sched.OrganizerID
	executorID := schedule.PickExecutor(sched.OrganizerID, sched.AttendeeIDs)
	if creatorID == "" && executorID == "" {
		res.Skipped, res.Reason = true, SkipMissingParticipants
		return res, nil
	}

	ownerID := target.UserID
	if ownerID == "" {
		ownerID = creatorID
	}
	calendarID := sched.CalendarID
	if calendarID == "" {
		calendarID = target.CalendarID
	}
	title := strings.TrimSpace(sched.Title)
	if title == "" {
		title = model.DefaultTitle
	}

	now := s.now()
	incoming := &model.Task{
		ExternalScheduleID: scheduleID,
		CreatorID:          creatorID,
		ExecutorID:         executorID,
		OwnerID:            ownerID,
		Title:              title,
		Description:        sched.Description,
		StartTime:          sched.StartTime,
		EndTime:            sched.EndTime,
		OwnerCalendarID:    calendarID,
		UpdatedAt:          now,
	}

	existing, err := s.store.GetTaskByScheduleID(ctx, scheduleID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		inserted, err := s.insertSynced(ctx, incoming, now)
		if err == nil {
			res.TaskID, res.Inserted = inserted.ID, true
			s.notifyNewTask(ctx, inserted)
			return res, nil
		}
		if !errors.Is(err, store.ErrDuplicateSchedule) {
			return res, err
		}
		// Another run inserted it first; reconcile as an update.
		existing, err = s.store.GetTaskByScheduleID(ctx, scheduleID)
		if err != nil {
			return res, fmt.Errorf("failed to reload task %s: %w", scheduleID, err)
		}
	case err != nil:
		return res, fmt.Errorf("failed to load task %s: %w", scheduleID, err)
	}

	incoming.ID = existing.ID
	if err := s.store.UpdateSyncFields(ctx, incoming); err != nil {
		return res, fmt.Errorf("failed to update task %s: %w", scheduleID, err)
	}
	s.logger.Debug().
		Str("schedule_id", scheduleID).
		Int64("task_id", existing.ID).
		Msg("updated synced task")
	res.TaskID, res.Updated = existing.ID, true
	return res, nil
}

func (s *TaskService) insertSynced(ctx context.Context, task *model.Task, now time.Time) (*model.Task, error) {
	task.Status = model.StatusPending
	task.LastReminderKind = model.ReminderNone
	task.CreatedAt = now
	id, err := s.store.InsertTask(ctx, task)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateSchedule) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert task %s: %w", task.ExternalScheduleID, err)
	}
	task.ID = id
	s.logger.Info().
		Str("schedule_id", task.ExternalScheduleID).
		Int64("task_id", id).
		Str("executor_id", task.ExecutorID).
		Msg("inserted synced task")
	return task, nil
}

func (s *TaskService) notifyNewTask(ctx context.Context, task *model.Task) {
	err := s.notifier.NotifyExecutor(ctx, task,
		"New task: "+task.Title,
		task.Description,
		[]model.Action{{Key: model.ActionComplete, Label: "Mark complete"}},
	)
	if err != nil {
		s.logger.Error().Err(err).Str("schedule_id", task.ExternalScheduleID).Msg("failed to notify executor of new task")
	}
}
