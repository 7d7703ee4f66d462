// Package reminder sweeps pending tasks and hands each to the task
// service's reminder dispatch.
package reminder

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/service"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

type TaskSource interface {
	ListTasks(ctx context.Context, filter store.Filter) ([]*model.Task, error)
	DispatchTaskReminder(ctx context.Context, task *model.Task) (service.ReminderResult, error)
}

// Summary counts one sweep.
type Summary struct {
	Checked   int `json:"checked"`
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

type Dispatcher struct {
	logger zerolog.Logger
	tasks  TaskSource
}

func NewDispatcher(logger zerolog.Logger, tasks TaskSource) *Dispatcher {
	return &Dispatcher{
		logger: logger.With().Str("component", "reminder").Logger(),
		tasks:  tasks,
	}
}

// Sweep checks every PENDING task once, in id order. A failure on one
// task is counted and logged and the sweep moves on.
func (d *Dispatcher) Sweep(ctx context.Context) (Summary, error) {
	var sum Summary
	pending, err := d.tasks.ListTasks(ctx, store.Filter{Status: model.StatusPending})
	if err != nil {
		return sum, err
	}
	for _, task := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Checked++
		res, err := d.tasks.DispatchTaskReminder(ctx, task)
		if res.Attempted {
			sum.Attempted++
		}
		if res.Sent {
			sum.Sent++
		}
		if err != nil {
			sum.Failed++
			d.logger.Error().Err(err).Str("schedule_id", task.ExternalScheduleID).Msg("reminder dispatch failed")
		}
	}
	d.logger.Info().
		Int("checked", sum.Checked).
		Int("sent", sum.Sent).
		Int("failed", sum.Failed).
		Msg("reminder sweep done")
	return sum, nil
}
