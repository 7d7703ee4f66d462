package model

import "time"

// Status is the stored lifecycle state of a task.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusWaitingVerify Status = "WAITING_VERIFY"
	StatusCompleted     Status = "COMPLETED"
)

// Valid reports whether s is one of the three lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWaitingVerify, StatusCompleted:
		return true
	}
	return false
}

// ReminderKind classifies how urgent a pending task's due date is.
type ReminderKind string

const (
	ReminderNone    ReminderKind = "NONE"
	ReminderDueSoon ReminderKind = "DUE_SOON"
	ReminderOverdue ReminderKind = "OVERDUE"
)

// DefaultTitle is used when a schedule or payload carries no title.
const DefaultTitle = "(untitled task)"

// Task is a unit of work tracked from assignment to verification.
type Task struct {
	ID                 int64
	ExternalScheduleID string

	CreatorID  string
	ExecutorID string
	OwnerID    string
	VerifierID string

	Title       string
	Description string

	StartTime      *time.Time
	EndTime        *time.Time
	CompletionTime *time.Time
	VerifyTime     *time.Time

	Status       Status
	RejectReason string
	RedoCount    int

	LastReminderKind ReminderKind
	LastReminderAt   *time.Time

	OwnerCalendarID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can't mutate shared timestamps.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.StartTime = cloneTime(t.StartTime)
	c.EndTime = cloneTime(t.EndTime)
	c.CompletionTime = cloneTime(t.CompletionTime)
	c.VerifyTime = cloneTime(t.VerifyTime)
	c.LastReminderAt = cloneTime(t.LastReminderAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr is a small helper for building optional timestamps.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// KpiSummary aggregates task counts and rates for a dashboard.
type KpiSummary struct {
	Total             int     `json:"total"`
	Completed         int     `json:"completed"`
	WaitingVerify     int     `json:"waitingVerify"`
	Overdue           int     `json:"overdue"`
	DueSoon           int     `json:"dueSoon"`
	CompletionRatePct float64 `json:"completionRatePct"`
	OnTimeRatePct     float64 `json:"onTimeRatePct"`
}
