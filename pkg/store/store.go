// Package store persists tasks and per-user calendar assignments.
//
// Status transitions are conditional updates guarded by the expected
// prior status; they report the number of rows changed so the caller can
// detect a lost race without holding locks.
package store

import (
	"errors"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrDuplicateSchedule = errors.New("task with this schedule id already exists")
)

// Filter narrows ListTasks. Zero values match everything.
type Filter struct {
	Status     model.Status
	ExecutorID string
}

func (f Filter) match(t *model.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ExecutorID != "" && t.ExecutorID != f.ExecutorID {
		return false
	}
	return true
}
