package google

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/schedule"
)

// sourceProperty tags events created for manual tasks.
const sourceProperty = "taskflow_source"

// DraftToEvent builds the calendar event for a manually created task.
// The creator organizes it and the executor is invited.
func DraftToEvent(draft model.ScheduleDraft) (*calendar.Event, error) {
	if draft.StartTime.IsZero() || draft.EndTime.IsZero() {
		return nil, fmt.Errorf("draft %q has no start or end time", draft.Title)
	}
	event := &calendar.Event{
		Summary:     draft.Title,
		Description: draft.Description,
		Start: &calendar.EventDateTime{
			DateTime: draft.StartTime.UTC().Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: draft.EndTime.UTC().Format(time.RFC3339),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				sourceProperty: "manual",
			},
		},
	}
	for _, id := range draft.AttendeeIDs {
		if id == "" || id == draft.OrganizerID {
			continue
		}
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: id})
	}
	return event, nil
}

// EventToSchedule normalizes a calendar event through the generic payload
// adapter, so Google events and pushed payloads follow the same rules.
func EventToSchedule(calendarID string, event *calendar.Event) (model.ExternalSchedule, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return model.ExternalSchedule{}, fmt.Errorf("failed to encode event %s: %w", event.Id, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return model.ExternalSchedule{}, fmt.Errorf("failed to decode event %s: %w", event.Id, err)
	}
	sched := schedule.FromPayload(raw)
	if sched.CalendarID == "" {
		sched.CalendarID = calendarID
	}
	return sched, nil
}
