// Package lifecycle holds the pure rules of the task lifecycle: who may
// move a task forward, how urgent a pending task is, and how tasks roll
// up into KPI figures. Nothing here performs I/O.
package lifecycle

import (
	"math"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

const (
	// DueSoonWindow is how far ahead of its end time a task counts as due soon.
	DueSoonWindow = 24 * time.Hour

	// DefaultCooldown suppresses repeats of the same reminder kind.
	DefaultCooldown = 12 * time.Hour
)

// CanAdvanceToVerify reports whether userID may submit the task for verification.
func CanAdvanceToVerify(task *model.Task, userID string) bool {
	if task == nil || userID == "" {
		return false
	}
	return task.Status == model.StatusPending && task.ExecutorID == userID
}

// CanVerify reports whether userID may approve or reject the task.
// The creator and any global verifier qualify, but only while the task
// is waiting for verification.
func CanVerify(task *model.Task, userID string, globalVerifiers []string) bool {
	if task == nil || userID == "" || task.Status != model.StatusWaitingVerify {
		return false
	}
	if task.CreatorID == userID {
		return true
	}
	for _, v := range globalVerifiers {
		if v == userID {
			return true
		}
	}
	return false
}

// ClassifyReminder returns the reminder kind for the task at now.
// A task whose end time equals now is due soon, not overdue.
func ClassifyReminder(task *model.Task, now time.Time) model.ReminderKind {
	if task == nil || task.Status != model.StatusPending || task.EndTime == nil {
		return model.ReminderNone
	}
	diff := task.EndTime.Sub(now)
	switch {
	case diff < 0:
		return model.ReminderOverdue
	case diff <= DueSoonWindow:
		return model.ReminderDueSoon
	default:
		return model.ReminderNone
	}
}

// ShouldSendReminder decides whether a reminder of kind must go out now.
// Only repeats of the last recorded kind are held back by the cooldown;
// a change of kind always goes out.
func ShouldSendReminder(task *model.Task, kind model.ReminderKind, now time.Time, cooldown time.Duration) bool {
	if task == nil || kind == model.ReminderNone || kind == "" {
		return false
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if task.LastReminderKind != kind || task.LastReminderAt == nil {
		return true
	}
	return now.Sub(*task.LastReminderAt) >= cooldown
}

// ComputeOverdue reports whether a not yet completed task is past its end time.
func ComputeOverdue(task *model.Task, now time.Time) bool {
	if task == nil || task.Status == model.StatusCompleted || task.EndTime == nil {
		return false
	}
	return task.EndTime.Before(now)
}

// ComputeDueSoon reports whether a pending task ends within DueSoonWindow.
func ComputeDueSoon(task *model.Task, now time.Time) bool {
	if task == nil || task.Status != model.StatusPending || task.EndTime == nil {
		return false
	}
	diff := task.EndTime.Sub(now)
	return diff >= 0 && diff <= DueSoonWindow
}

// CompletedOnTime reports whether a completed task was finished by its end time.
// The completion timestamp falls back to the verify timestamp.
func CompletedOnTime(task *model.Task) bool {
	if task == nil || task.Status != model.StatusCompleted || task.EndTime == nil {
		return false
	}
	doneAt := task.CompletionTime
	if doneAt == nil {
		doneAt = task.VerifyTime
	}
	if doneAt == nil {
		return false
	}
	return !doneAt.After(*task.EndTime)
}

// AggregateKpi rolls tasks up into a KpiSummary at now.
func AggregateKpi(tasks []*model.Task, now time.Time) model.KpiSummary {
	var kpi model.KpiSummary
	onTime := 0
	for _, task := range tasks {
		if task == nil {
			continue
		}
		kpi.Total++
		switch task.Status {
		case model.StatusCompleted:
			kpi.Completed++
			if CompletedOnTime(task) {
				onTime++
			}
		case model.StatusWaitingVerify:
			kpi.WaitingVerify++
		}
		if ComputeOverdue(task, now) {
			kpi.Overdue++
		}
		if ComputeDueSoon(task, now) {
			kpi.DueSoon++
		}
	}
	if kpi.Total > 0 {
		kpi.CompletionRatePct = round2(float64(kpi.Completed) / float64(kpi.Total) * 100)
	}
	if kpi.Completed > 0 {
		kpi.OnTimeRatePct = round2(float64(onTime) / float64(kpi.Completed) * 100)
	}
	return kpi
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
