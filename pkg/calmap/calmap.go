// Package calmap resolves which external calendars belong to which users
// and which calendars a sync run has to poll.
package calmap

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// Mapping is one user -> calendar assignment.
type Mapping struct {
	UserID     string
	CalendarID string
}

// Options is everything the resolver needs for one call. RawMapping is
// re-parsed on every call so config changes are picked up immediately.
type Options struct {
	DefaultCalendarID string
	RawMapping        string
	StorageRows       []model.UserCalendar
}

// ParseMapping parses either "user:cal,user:cal" or a structured form:
// an object of user -> calendar, or an array of objects carrying user and
// calendar keys. A structured value that fails to parse is retried as the
// pairwise form.
func ParseMapping(raw string) []Mapping {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if raw[0] == '{' || raw[0] == '[' {
		if rows, ok := parseStructured(raw); ok {
			return rows
		}
	}
	return parsePairs(raw)
}

func parsePairs(raw string) []Mapping {
	var rows []Mapping
	for _, item := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}) {
		user, cal, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		user, cal = strings.TrimSpace(user), strings.TrimSpace(cal)
		if user == "" || cal == "" {
			continue
		}
		rows = append(rows, Mapping{UserID: user, CalendarID: cal})
	}
	return rows
}

var (
	userKeys     = []string{"userId", "user_id", "user", "openId", "open_id"}
	calendarKeys = []string{"calendarId", "calendar_id", "calendar"}
)

// parseStructured decodes JSON (which YAML accepts as a subset) in
// either object or array form.
func parseStructured(raw string) ([]Mapping, bool) {
	if raw[0] == '{' {
		var obj yaml.Node
		if err := yaml.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, false
		}
		return mappingFromObject(&obj)
	}

	var list []map[string]any
	if err := yaml.Unmarshal([]byte(raw), &list); err != nil {
		return nil, false
	}
	var rows []Mapping
	for _, item := range list {
		user := firstValue(item, userKeys)
		cal := firstValue(item, calendarKeys)
		if user == "" || cal == "" {
			continue
		}
		rows = append(rows, Mapping{UserID: user, CalendarID: cal})
	}
	return rows, true
}

// mappingFromObject walks the node so key order from the source survives.
func mappingFromObject(doc *yaml.Node) ([]Mapping, bool) {
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, false
	}
	var rows []Mapping
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			continue
		}
		user, cal := strings.TrimSpace(key.Value), strings.TrimSpace(val.Value)
		if user == "" || cal == "" {
			continue
		}
		rows = append(rows, Mapping{UserID: user, CalendarID: cal})
	}
	return rows, true
}

func firstValue(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarValue(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// scalarValue accepts numeric ids as well as strings, matching what the
// object form yields for unquoted values.
func scalarValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}

// mergedMappings returns config rows overlaid by storage rows, last write
// wins per user, in first-seen user order.
func mergedMappings(opts Options) []Mapping {
	var order []string
	byUser := make(map[string]string)
	put := func(user, cal string) {
		user, cal = strings.TrimSpace(user), strings.TrimSpace(cal)
		if user == "" || cal == "" {
			return
		}
		if _, ok := byUser[user]; !ok {
			order = append(order, user)
		}
		byUser[user] = cal
	}
	for _, m := range ParseMapping(opts.RawMapping) {
		put(m.UserID, m.CalendarID)
	}
	for _, row := range opts.StorageRows {
		put(row.UserID, row.CalendarID)
	}

	rows := make([]Mapping, 0, len(order))
	for _, user := range order {
		rows = append(rows, Mapping{UserID: user, CalendarID: byUser[user]})
	}
	return rows
}

// BuildSyncTargets merges config and storage rows, deduplicates by
// calendar id keeping the first entry, and appends the default calendar
// when it is not already covered.
func BuildSyncTargets(opts Options) []model.SyncTarget {
	storageUsers := make(map[string]bool, len(opts.StorageRows))
	for _, row := range opts.StorageRows {
		storageUsers[strings.TrimSpace(row.UserID)] = true
	}

	var targets []model.SyncTarget
	for _, m := range mergedMappings(opts) {
		source := model.SourceConfig
		if storageUsers[m.UserID] {
			source = model.SourceStorage
		}
		targets = append(targets, model.SyncTarget{
			UserID:     m.UserID,
			CalendarID: m.CalendarID,
			Source:     source,
		})
	}
	targets = dedupeByCalendar(targets)

	if def := strings.TrimSpace(opts.DefaultCalendarID); def != "" {
		targets = append(targets, model.SyncTarget{
			CalendarID: def,
			Source:     model.SourceDefault,
		})
		targets = dedupeByCalendar(targets)
	}
	return targets
}

func dedupeByCalendar(targets []model.SyncTarget) []model.SyncTarget {
	seen := make(map[string]bool, len(targets))
	out := targets[:0]
	for _, t := range targets {
		if seen[t.CalendarID] {
			continue
		}
		seen[t.CalendarID] = true
		out = append(out, t)
	}
	return out
}

// ResolveCalendarIDForUser returns the user's calendar, or the default
// calendar when the user is empty or unmapped.
func ResolveCalendarIDForUser(userID string, opts Options) string {
	userID = strings.TrimSpace(userID)
	def := strings.TrimSpace(opts.DefaultCalendarID)
	if userID == "" {
		return def
	}
	for _, m := range mergedMappings(opts) {
		if m.UserID == userID {
			return m.CalendarID
		}
	}
	return def
}

// ParseUserList splits a delimited list of user ids, dropping blanks and
// duplicates.
func ParseUserList(raw string) []string {
	var users []string
	seen := make(map[string]bool)
	for _, item := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == ' ' || r == '\t'
	}) {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		users = append(users, item)
	}
	return users
}
