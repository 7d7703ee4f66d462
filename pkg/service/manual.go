package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/schedule"
)

// LocalSchedulePrefix marks schedule ids synthesized when no calendar
// entry could be created.
const LocalSchedulePrefix = "local-"

type ManualTaskInput struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ExecutorID  string        `json:"executor_id"`
	StartTime   schedule.Time `json:"start_time"`
	EndTime     schedule.Time `json:"end_time"`
}

// CreateManualTask creates a PENDING task assigned by creatorID. The
// calendar entry is best effort: when it cannot be written the task gets
// a local schedule id and is stored anyway.
func (s *TaskService) CreateManualTask(ctx context.Context, in ManualTaskInput, creatorID string) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	executorID := strings.TrimSpace(in.ExecutorID)
	if title == "" {
		return nil, newError(KindBadRequest, "TITLE_REQUIRED", "title is required")
	}
	if executorID == "" {
		return nil, newError(KindBadRequest, "EXECUTOR_REQUIRED", "executor_id is required")
	}
	if creatorID == "" {
		return nil, newError(KindBadRequest, "CREATOR_REQUIRED", "creator is required")
	}

	now := s.now()
	start := now
	if !in.StartTime.IsZero() {
		start = in.StartTime.Time
	}
	if in.EndTime.IsZero() {
		return nil, newError(KindBadRequest, "INVALID_END_TIME", "end_time is required")
	}
	end := in.EndTime.Time
	if !end.After(start) {
		return nil, newError(KindBadRequest, "INVALID_END_TIME", "end_time must be after start_time")
	}

	calendarID, err := s.ResolveCalendarID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		CreatorID:        creatorID,
		ExecutorID:       executorID,
		OwnerID:          creatorID,
		Title:            title,
		Description:      in.Description,
		StartTime:        model.TimePtr(start),
		EndTime:          model.TimePtr(end),
		Status:           model.StatusPending,
		LastReminderKind: model.ReminderNone,
		OwnerCalendarID:  calendarID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	task.ExternalScheduleID = s.createExternalSchedule(ctx, calendarID, model.ScheduleDraft{
		Title:       title,
		Description: in.Description,
		OrganizerID: creatorID,
		AttendeeIDs: []string{executorID},
		StartTime:   start,
		EndTime:     end,
	})

	id, err := s.store.InsertTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to insert manual task: %w", err)
	}
	task.ID = id
	s.logger.Info().
		Int64("task_id", id).
		Str("schedule_id", task.ExternalScheduleID).
		Str("creator_id", creatorID).
		Str("executor_id", executorID).
		Msg("created manual task")

	s.notifyNewTask(ctx, task)
	return task, nil
}

func (s *TaskService) createExternalSchedule(ctx context.Context, calendarID string, draft model.ScheduleDraft) string {
	local := LocalSchedulePrefix + uuid.NewString()
	if s.calendar == nil || calendarID == "" {
		return local
	}
	id, err := s.calendar.CreateSchedule(ctx, calendarID, draft)
	if err != nil || id == "" {
		s.logger.Warn().
			Err(err).
			Str("calendar_id", calendarID).
			Msg("failed to create calendar entry, using local schedule id")
		return local
	}
	return id
}
