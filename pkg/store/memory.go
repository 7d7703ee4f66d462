package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// Memory is an in-process store with the same conditional-update
// semantics as Postgres. It backs local runs without a database.
type Memory struct {
	mu         sync.RWMutex
	nextID     int64
	tasks      map[int64]*model.Task
	bySchedule map[string]int64
	calendars  map[string]model.UserCalendar
}

func NewMemory() *Memory {
	return &Memory{
		tasks:      make(map[int64]*model.Task),
		bySchedule: make(map[string]int64),
		calendars:  make(map[string]model.UserCalendar),
	}
}

func (m *Memory) EnsureSchema(context.Context) error {
	return nil
}

func (m *Memory) InsertTask(_ context.Context, task *model.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySchedule[task.ExternalScheduleID]; exists {
		return 0, ErrDuplicateSchedule
	}
	m.nextID++
	stored := task.Clone()
	stored.ID = m.nextID
	if stored.LastReminderKind == "" {
		stored.LastReminderKind = model.ReminderNone
	}
	m.tasks[stored.ID] = stored
	m.bySchedule[stored.ExternalScheduleID] = stored.ID
	return stored.ID, nil
}

func (m *Memory) GetTaskByScheduleID(_ context.Context, scheduleID string) (*model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySchedule[scheduleID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.tasks[id].Clone(), nil
}

func (m *Memory) ListTasks(_ context.Context, filter Filter) ([]*model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Task
	for _, task := range m.tasks {
		if filter.match(task) {
			out = append(out, task.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateSyncFields(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = task.Title
	stored.Description = task.Description
	stored.CreatorID = task.CreatorID
	stored.ExecutorID = task.ExecutorID
	stored.OwnerID = task.OwnerID
	stored.OwnerCalendarID = task.OwnerCalendarID
	stored.StartTime = task.Clone().StartTime
	stored.EndTime = task.Clone().EndTime
	stored.UpdatedAt = task.UpdatedAt
	return nil
}

// update applies fn to the task only if it is currently in status from.
func (m *Memory) update(id int64, from model.Status, fn func(*model.Task)) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[id]
	if !ok || stored.Status != from {
		return 0
	}
	fn(stored)
	return 1
}

func (m *Memory) MarkWaitingVerify(_ context.Context, id int64, at time.Time) (int64, error) {
	return m.update(id, model.StatusPending, func(t *model.Task) {
		t.Status = model.StatusWaitingVerify
		t.CompletionTime = model.TimePtr(at)
		t.RejectReason = ""
		t.UpdatedAt = at
	}), nil
}

func (m *Memory) Approve(_ context.Context, id int64, verifierID string, at time.Time) (int64, error) {
	return m.update(id, model.StatusWaitingVerify, func(t *model.Task) {
		t.Status = model.StatusCompleted
		t.VerifyTime = model.TimePtr(at)
		t.VerifierID = verifierID
		t.RejectReason = ""
		t.UpdatedAt = at
	}), nil
}

func (m *Memory) Reject(_ context.Context, id int64, verifierID, reason string, at time.Time) (int64, error) {
	return m.update(id, model.StatusWaitingVerify, func(t *model.Task) {
		t.Status = model.StatusPending
		t.VerifyTime = model.TimePtr(at)
		t.VerifierID = verifierID
		t.RejectReason = reason
		t.RedoCount++
		t.UpdatedAt = at
	}), nil
}

func (m *Memory) StampReminder(_ context.Context, id int64, kind model.ReminderKind, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	stored.LastReminderKind = kind
	stored.LastReminderAt = model.TimePtr(at)
	stored.UpdatedAt = at
	return nil
}

func (m *Memory) ListUserCalendars(context.Context) ([]model.UserCalendar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.UserCalendar, 0, len(m.calendars))
	for _, row := range m.calendars {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (m *Memory) UpsertUserCalendar(_ context.Context, row model.UserCalendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calendars[row.UserID] = row
	return nil
}
