// Package schedule normalizes calendar entries delivered in varying
// shapes into model.ExternalSchedule. Each field is read from a fixed
// priority list of source keys and the first non-empty value wins.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

var (
	idKeys          = []string{"schedule_id", "event_id", "id", "uid"}
	titleKeys       = []string{"summary", "title", "subject"}
	descriptionKeys = []string{"description", "desc", "content"}
	organizerKeys   = []string{"organizer", "event_organizer", "creator", "organizer_id", "organizer_user_id"}
	attendeeKeys    = []string{"attendees", "attendee_list", "participants", "members"}
	startKeys       = []string{"start_time", "start", "startTime"}
	endKeys         = []string{"end_time", "end", "endTime"}
	calendarKeys    = []string{"calendar_id", "calendarId"}

	// Keys that identify a person when the value is an object.
	personKeys = []string{"user_id", "open_id", "email", "id", "display_name"}
	// Keys that carry the instant when a time value is an object.
	instantKeys = []string{"timestamp", "date_time", "dateTime", "date"}
)

// FromPayload builds an ExternalSchedule from a decoded JSON object.
// Missing or malformed fields come back empty; the caller decides
// whether the result is usable.
func FromPayload(raw map[string]any) model.ExternalSchedule {
	s := model.ExternalSchedule{
		ID:          firstString(raw, idKeys),
		CalendarID:  firstString(raw, calendarKeys),
		Title:       firstString(raw, titleKeys),
		Description: firstString(raw, descriptionKeys),
		OrganizerID: firstPerson(raw, organizerKeys),
		AttendeeIDs: firstPeople(raw, attendeeKeys),
		StartTime:   firstTime(raw, startKeys),
		EndTime:     firstTime(raw, endKeys),
	}
	return s
}

// PickExecutor returns the first attendee who is not the organizer,
// else the first attendee, else the organizer.
func PickExecutor(organizerID string, attendeeIDs []string) string {
	for _, a := range attendeeIDs {
		if a != "" && a != organizerID {
			return a
		}
	}
	for _, a := range attendeeIDs {
		if a != "" {
			return a
		}
	}
	return organizerID
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarString(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstPerson(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if id := personID(raw[k]); id != "" {
			return id
		}
	}
	return ""
}

func firstPeople(raw map[string]any, keys []string) []string {
	for _, k := range keys {
		list, ok := raw[k].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		var ids []string
		seen := make(map[string]bool, len(list))
		for _, item := range list {
			id := personID(item)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			return ids
		}
	}
	return nil
}

func firstTime(raw map[string]any, keys []string) *time.Time {
	for _, k := range keys {
		if t, ok := instant(raw[k]); ok {
			return &t
		}
	}
	return nil
}

func personID(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return firstString(val, personKeys)
	default:
		return scalarString(val)
	}
}

func instant(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case map[string]any:
		for _, k := range instantKeys {
			if t, ok := instant(val[k]); ok {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		s := scalarString(val)
		if s == "" {
			return time.Time{}, false
		}
		t, err := ParseTime(s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	}
	return ""
}
