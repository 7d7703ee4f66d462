package google

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/schedule"
)

func TestDraftToEvent(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	draft := model.ScheduleDraft{
		Title:       "Write docs",
		Description: "API section",
		OrganizerID: "mgr@example.com",
		AttendeeIDs: []string{"mgr@example.com", "exec1@example.com", ""},
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
	}

	event, err := DraftToEvent(draft)
	if err != nil {
		t.Fatalf("DraftToEvent failed: %v", err)
	}
	if event.Summary != "Write docs" || event.Description != "API section" {
		t.Errorf("unexpected text fields: %+v", event)
	}
	if event.Start.DateTime != "2025-03-10T08:00:00Z" || event.End.DateTime != "2025-03-10T10:00:00Z" {
		t.Errorf("times not converted to UTC: %s %s", event.Start.DateTime, event.End.DateTime)
	}
	if len(event.Attendees) != 1 || event.Attendees[0].Email != "exec1@example.com" {
		t.Errorf("organizer and blanks should not be invited: %+v", event.Attendees)
	}
	if event.ExtendedProperties.Private[sourceProperty] != "manual" {
		t.Errorf("missing source property: %+v", event.ExtendedProperties.Private)
	}

	if _, err := DraftToEvent(model.ScheduleDraft{Title: "no times"}); err == nil {
		t.Error("expected error for draft without times")
	}
}

func TestEventToSchedule(t *testing.T) {
	event := &calendar.Event{
		Id:          "evt-1",
		Summary:     "Ship release",
		Description: "cut the tag",
		Organizer:   &calendar.EventOrganizer{Email: "mgr@example.com", DisplayName: "Manager"},
		Attendees: []*calendar.EventAttendee{
			{Email: "mgr@example.com", Organizer: true},
			{Email: "exec1@example.com"},
		},
		Start: &calendar.EventDateTime{DateTime: "2025-03-10T09:00:00Z"},
		End:   &calendar.EventDateTime{Date: "2025-03-12"},
	}

	sched, err := EventToSchedule("team", event)
	if err != nil {
		t.Fatalf("EventToSchedule failed: %v", err)
	}
	if sched.ID != "evt-1" || sched.CalendarID != "team" || sched.Title != "Ship release" {
		t.Errorf("unexpected schedule: %+v", sched)
	}
	if sched.OrganizerID != "mgr@example.com" {
		t.Errorf("OrganizerID = %q", sched.OrganizerID)
	}
	if len(sched.AttendeeIDs) != 2 || sched.AttendeeIDs[1] != "exec1@example.com" {
		t.Errorf("AttendeeIDs = %v", sched.AttendeeIDs)
	}
	if sched.StartTime == nil || !sched.StartTime.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("StartTime = %v", sched.StartTime)
	}
	if sched.EndTime == nil || !sched.EndTime.Equal(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("all-day EndTime = %v", sched.EndTime)
	}
}

func TestEventToScheduleOrganizerWithProfileID(t *testing.T) {
	event := &calendar.Event{
		Id:        "evt-2",
		Organizer: &calendar.EventOrganizer{Email: "mgr@corp.example", Id: "1177"},
		Attendees: []*calendar.EventAttendee{
			{Email: "mgr@corp.example", Organizer: true},
			{Email: "exec1@corp.example"},
		},
	}

	sched, err := EventToSchedule("team", event)
	if err != nil {
		t.Fatalf("EventToSchedule failed: %v", err)
	}
	if sched.OrganizerID != "mgr@corp.example" {
		t.Errorf("OrganizerID = %q, want the organizer email", sched.OrganizerID)
	}
	if got := schedule.PickExecutor(sched.OrganizerID, sched.AttendeeIDs); got != "exec1@corp.example" {
		t.Errorf("executor = %q, want exec1@corp.example", got)
	}
}
