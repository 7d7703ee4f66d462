package service

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/taskflow/pkg/lifecycle"
	"github.com/harrisonrobin/taskflow/pkg/model"
)

type ReminderResult struct {
	Kind      model.ReminderKind
	Attempted bool
	Sent      bool
}

var reminderTitles = map[model.ReminderKind]string{
	model.ReminderDueSoon: "Task due soon: ",
	model.ReminderOverdue: "Task overdue: ",
}

// DispatchTaskReminder sends a reminder when the task's urgency calls for
// one and the cooldown allows it. Once a send is attempted the task is
// stamped, whether or not delivery succeeded.
func (s *TaskService) DispatchTaskReminder(ctx context.Context, task *model.Task) (ReminderResult, error) {
	now := s.now()
	kind := lifecycle.ClassifyReminder(task, now)
	res := ReminderResult{Kind: kind}
	if !lifecycle.ShouldSendReminder(task, kind, now, s.settings.ReminderCooldown) {
		return res, nil
	}
	if task.ExecutorID == "" {
		s.logger.Debug().Str("schedule_id", task.ExternalScheduleID).Msg("reminder skipped, no executor")
		return res, nil
	}

	res.Attempted = true
	body := ""
	if task.EndTime != nil {
		body = "Due " + task.EndTime.Format("2006-01-02 15:04 MST")
	}
	err := s.notifier.NotifyExecutor(ctx, task, reminderTitles[kind]+task.Title, body,
		[]model.Action{{Key: model.ActionComplete, Label: "Mark complete"}})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("schedule_id", task.ExternalScheduleID).
			Str("kind", string(kind)).
			Msg("failed to send reminder")
	} else {
		res.Sent = true
	}

	if err := s.store.StampReminder(ctx, task.ID, kind, now); err != nil {
		return res, fmt.Errorf("failed to stamp reminder for %s: %w", task.ExternalScheduleID, err)
	}
	task.LastReminderKind = kind
	task.LastReminderAt = model.TimePtr(now)
	return res, nil
}
