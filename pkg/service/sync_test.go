package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/schedule"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

func externalSchedule() model.ExternalSchedule {
	return model.ExternalSchedule{
		ID:          "evt-1",
		Title:       "Ship release",
		Description: "cut the tag",
		OrganizerID: "mgr",
		AttendeeIDs: []string{"mgr", "exec1"},
		EndTime:     model.TimePtr(testNow.Add(48 * time.Hour)),
	}
}

func TestSyncScheduleTaskInsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, n := newTestService(t, st, Settings{})
	target := model.SyncTarget{UserID: "mgr", CalendarID: "cal-mgr", Source: model.SourceConfig}

	res, err := svc.SyncScheduleTask(ctx, externalSchedule(), target)
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if !res.Inserted || res.Updated {
		t.Fatalf("first sync should insert: %+v", res)
	}
	task, _ := st.GetTaskByScheduleID(ctx, "evt-1")
	if task.ExecutorID != "exec1" || task.CreatorID != "mgr" || task.OwnerID != "mgr" || task.OwnerCalendarID != "cal-mgr" {
		t.Fatalf("unexpected synced task: %+v", task)
	}
	if n.count("executor") != 1 {
		t.Errorf("new task should notify executor once, got %d", n.count("executor"))
	}

	if _, err := svc.SubmitForVerification(ctx, "evt-1", "exec1"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	changed := externalSchedule()
	changed.Title = "Ship release v2"
	res, err = svc.SyncScheduleTask(ctx, changed, target)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if res.Inserted || !res.Updated {
		t.Fatalf("second sync should update: %+v", res)
	}
	task, _ = st.GetTaskByScheduleID(ctx, "evt-1")
	if task.Title != "Ship release v2" {
		t.Errorf("title not updated: %q", task.Title)
	}
	if task.Status != model.StatusWaitingVerify || task.RedoCount != 0 {
		t.Errorf("sync must not touch lifecycle fields: %+v", task)
	}
	if n.count("executor") != 1 {
		t.Errorf("update should not notify, got %d executor notifications", n.count("executor"))
	}
}

func TestSyncScheduleTaskIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, _ := newTestService(t, st, Settings{})
	target := model.SyncTarget{CalendarID: "team", Source: model.SourceDefault}

	if _, err := svc.SyncScheduleTask(ctx, externalSchedule(), target); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	res, err := svc.SyncScheduleTask(ctx, externalSchedule(), target)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if res.Inserted || !res.Updated {
		t.Errorf("want {inserted:false, updated:true}, got %+v", res)
	}
	task, _ := st.GetTaskByScheduleID(ctx, "evt-1")
	if task.Status != model.StatusPending || task.RedoCount != 0 {
		t.Errorf("unexpected lifecycle fields: %+v", task)
	}
	if task.OwnerID != "mgr" {
		t.Errorf("default target owner should fall back to organizer, got %q", task.OwnerID)
	}
}

func TestSyncScheduleTaskSkips(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, _ := newTestService(t, st, Settings{})

	res, _ := svc.SyncScheduleTask(ctx, model.ExternalSchedule{Title: "no id"}, model.SyncTarget{})
	if !res.Skipped || res.Reason != SkipMissingScheduleID {
		t.Errorf("unexpected result: %+v", res)
	}
	res, _ = svc.SyncScheduleTask(ctx, model.ExternalSchedule{ID: "evt-2"}, model.SyncTarget{})
	if !res.Skipped || res.Reason != SkipMissingParticipants {
		t.Errorf("unexpected result: %+v", res)
	}
	if tasks, _ := st.ListTasks(ctx, store.Filter{}); len(tasks) != 0 {
		t.Errorf("skips must not write, got %d tasks", len(tasks))
	}
}

func TestSyncScheduleTaskDefaultTitle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, _ := newTestService(t, st, Settings{})

	sched := externalSchedule()
	sched.Title = "  "
	if _, err := svc.SyncScheduleTask(ctx, sched, model.SyncTarget{}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	task, _ := st.GetTaskByScheduleID(ctx, "evt-1")
	if task.Title != model.DefaultTitle {
		t.Errorf("Title = %q, want default", task.Title)
	}
}

// lateStore reports a schedule as absent on the first lookup although it
// already exists, as if a concurrent run had inserted it in between.
type lateStore struct {
	*store.Memory
	hidden bool
}

func (l *lateStore) GetTaskByScheduleID(ctx context.Context, scheduleID string) (*model.Task, error) {
	if !l.hidden {
		l.hidden = true
		return nil, store.ErrNotFound
	}
	return l.Memory.GetTaskByScheduleID(ctx, scheduleID)
}

func TestSyncScheduleTaskInsertRace(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedTask(t, mem, &model.Task{ExternalScheduleID: "evt-1", Title: "old", Status: model.StatusPending})
	svc, n := newTestService(t, &lateStore{Memory: mem}, Settings{})

	res, err := svc.SyncScheduleTask(ctx, externalSchedule(), model.SyncTarget{})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if res.Inserted || !res.Updated {
		t.Errorf("lost insert race should fall through to update: %+v", res)
	}
	task, _ := mem.GetTaskByScheduleID(ctx, "evt-1")
	if task.Title != "Ship release" {
		t.Errorf("Title = %q, want updated", task.Title)
	}
	if n.count("executor") != 0 {
		t.Errorf("no new-task notification expected")
	}
}

func TestCreateManualTask(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	cal := &fakeCalendar{id: "evt-created"}
	svc, n := newTestService(t, st, Settings{DefaultCalendarID: "team", UserCalendarMap: "mgr:cal-mgr"}, WithCalendarWriter(cal))

	task, err := svc.CreateManualTask(ctx, ManualTaskInput{
		Title:      "Write docs",
		ExecutorID: "exec1",
		EndTime:    mustTime(t, "2025-03-12T18:00:00Z"),
	}, "mgr")
	if err != nil {
		t.Fatalf("CreateManualTask failed: %v", err)
	}
	if task.ExternalScheduleID != "evt-created" || task.OwnerCalendarID != "cal-mgr" {
		t.Errorf("unexpected task: %+v", task)
	}
	if cal.calendarID != "cal-mgr" || cal.draft.OrganizerID != "mgr" || len(cal.draft.AttendeeIDs) != 1 || cal.draft.AttendeeIDs[0] != "exec1" {
		t.Errorf("unexpected calendar call: %s %+v", cal.calendarID, cal.draft)
	}
	if !task.StartTime.Equal(testNow) {
		t.Errorf("start should default to now, got %v", task.StartTime)
	}
	stored, err := st.GetTaskByScheduleID(ctx, "evt-created")
	if err != nil || stored.Status != model.StatusPending {
		t.Fatalf("stored task: %+v err=%v", stored, err)
	}
	if n.count("executor") != 1 {
		t.Errorf("executor should be notified")
	}
}

func TestCreateManualTaskCalendarFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	cal := &fakeCalendar{err: errors.New("quota exceeded")}
	svc, _ := newTestService(t, st, Settings{DefaultCalendarID: "team"}, WithCalendarWriter(cal))

	task, err := svc.CreateManualTask(ctx, ManualTaskInput{
		Title:      "Write docs",
		ExecutorID: "exec1",
		StartTime:  mustTime(t, "2025-03-10 10:00"),
		EndTime:    mustTime(t, "2025-03-10 12:00"),
	}, "mgr")
	if err != nil {
		t.Fatalf("calendar failure must not block creation: %v", err)
	}
	if !strings.HasPrefix(task.ExternalScheduleID, LocalSchedulePrefix) {
		t.Errorf("ExternalScheduleID = %q, want local placeholder", task.ExternalScheduleID)
	}
	if _, err := st.GetTaskByScheduleID(ctx, task.ExternalScheduleID); err != nil {
		t.Errorf("task not stored: %v", err)
	}
}

func TestCreateManualTaskValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, store.NewMemory(), Settings{})
	day11 := mustTime(t, "2025-03-11")

	tests := []struct {
		name string
		in   ManualTaskInput
		code string
	}{
		{"no title", ManualTaskInput{ExecutorID: "exec1", EndTime: day11}, "TITLE_REQUIRED"},
		{"no executor", ManualTaskInput{Title: "x", EndTime: day11}, "EXECUTOR_REQUIRED"},
		{"missing end", ManualTaskInput{Title: "x", ExecutorID: "exec1"}, "INVALID_END_TIME"},
		{"end before now", ManualTaskInput{Title: "x", ExecutorID: "exec1", EndTime: mustTime(t, "2025-03-09")}, "INVALID_END_TIME"},
		{"end equals start", ManualTaskInput{Title: "x", ExecutorID: "exec1", StartTime: day11, EndTime: day11}, "INVALID_END_TIME"},
		{"end before start", ManualTaskInput{Title: "x", ExecutorID: "exec1", StartTime: mustTime(t, "2025-03-12"), EndTime: day11}, "INVALID_END_TIME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateManualTask(ctx, tt.in, "mgr")
			var svcErr *Error
			if !errors.As(err, &svcErr) || svcErr.Kind != KindBadRequest || svcErr.Code != tt.code {
				t.Errorf("got %v, want %s", err, tt.code)
			}
		})
	}
}

func TestManualTaskInputDecodesTimestamps(t *testing.T) {
	var in ManualTaskInput
	body := `{"title": "x", "executor_id": "exec1", "start_time": 1741597200, "end_time": "2025-03-10T12:00:00Z"}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !in.StartTime.Equal(time.Unix(1741597200, 0)) {
		t.Errorf("StartTime = %v", in.StartTime)
	}

	svc, _ := newTestService(t, store.NewMemory(), Settings{})
	task, err := svc.CreateManualTask(context.Background(), in, "mgr")
	if err != nil {
		t.Fatalf("CreateManualTask failed: %v", err)
	}
	if !task.StartTime.Equal(time.Unix(1741597200, 0)) {
		t.Errorf("stored StartTime = %v", task.StartTime)
	}

	err = json.Unmarshal([]byte(`{"end_time": "tomorrow"}`), &in)
	if !errors.Is(err, schedule.ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}
}

func mustTime(t *testing.T, s string) schedule.Time {
	t.Helper()
	parsed, err := schedule.ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime(%q): %v", s, err)
	}
	return schedule.Time{Time: parsed}
}
