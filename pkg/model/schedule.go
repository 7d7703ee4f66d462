package model

import "time"

// ExternalSchedule is a calendar entry after normalization, independent
// of the shape the provider delivered it in.
type ExternalSchedule struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	OrganizerID string
	AttendeeIDs []string
	StartTime   *time.Time
	EndTime     *time.Time
}

// ScheduleRef is one entry of a calendar listing.
type ScheduleRef struct {
	ID         string
	CalendarID string
}

// ScheduleDraft describes a calendar entry to be created for a manual task.
type ScheduleDraft struct {
	Title       string
	Description string
	OrganizerID string
	AttendeeIDs []string
	StartTime   time.Time
	EndTime     time.Time
}

// Target sources.
const (
	SourceConfig  = "config"
	SourceStorage = "storage"
	SourceDefault = "default"
	SourcePush    = "push"
)

// SyncTarget is a (user, calendar) pair polled during a sync run.
type SyncTarget struct {
	UserID     string `json:"userId"`
	CalendarID string `json:"calendarId"`
	Source     string `json:"source"`
}

// UserCalendar is a stored per-user calendar assignment.
type UserCalendar struct {
	UserID     string    `json:"userId"`
	CalendarID string    `json:"calendarId"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
