package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned, wrapped, for input ParseTime cannot read.
var ErrInvalidTime = errors.New("invalid timestamp")

// compactDate is tried before unix seconds for eight-digit input.
const compactDate = "20060102"

// Layouts accepted for textual timestamps, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"20060102T150405Z",
	time.DateOnly,
}

// ParseTime parses a timestamp given as RFC 3339 (or a few common
// variants), a date, or unix seconds/milliseconds in decimal.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	if len(s) == len(compactDate) {
		if t, err := time.Parse(compactDate, s); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromUnix(n), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// fromUnix treats values with more than 10 digits as milliseconds.
func fromUnix(n int64) time.Time {
	if n > 9_999_999_999 || n < -9_999_999_999 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// Time is a timestamp that unmarshals from any form ParseTime accepts,
// including bare JSON numbers.
type Time struct {
	time.Time
}

// UnmarshalJSON implements the json.Unmarshaler interface for Time.
func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" || s == "0" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Time.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Ptr returns nil for the zero time.
func (t Time) Ptr() *time.Time {
	if t.Time.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
