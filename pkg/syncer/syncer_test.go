package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/google"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/reminder"
	"github.com/harrisonrobin/taskflow/pkg/service"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeProvider struct {
	lists     map[string][]model.ScheduleRef
	listErrs  map[string]error
	schedules map[string]model.ExternalSchedule
	getErrs   map[string]error
	gets      []string
}

func (f *fakeProvider) ListSchedules(_ context.Context, calendarID string) ([]model.ScheduleRef, error) {
	if err := f.listErrs[calendarID]; err != nil {
		return nil, err
	}
	return f.lists[calendarID], nil
}

func (f *fakeProvider) GetSchedule(_ context.Context, calendarID, scheduleID string) (model.ExternalSchedule, error) {
	f.gets = append(f.gets, calendarID+"/"+scheduleID)
	if err := f.getErrs[scheduleID]; err != nil {
		return model.ExternalSchedule{}, err
	}
	return f.schedules[scheduleID], nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyExecutor(context.Context, *model.Task, string, string, []model.Action) error {
	return nil
}
func (noopNotifier) NotifyVerifiers(context.Context, *model.Task, []string) error { return nil }
func (noopNotifier) NotifyResult(context.Context, *model.Task, bool, string) error { return nil }

func newSyncer(t *testing.T, p Provider, settings service.Settings) (*Syncer, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	svc := service.NewTaskService(zerolog.Nop(), st, noopNotifier{}, settings,
		service.WithClock(func() time.Time { return testNow }))
	s := New(zerolog.Nop(), p, svc, reminder.NewDispatcher(zerolog.Nop(), svc))
	s.now = func() time.Time { return testNow }
	return s, st
}

func ref(cal, id string) model.ScheduleRef { return model.ScheduleRef{ID: id, CalendarID: cal} }

func TestRunReconcilesAcrossCalendars(t *testing.T) {
	p := &fakeProvider{
		lists: map[string][]model.ScheduleRef{
			"cal-a": {ref("cal-a", "e1"), ref("cal-a", "e2"), ref("cal-a", "gone"), ref("cal-a", "bad")},
			"team":  {ref("team", "e1"), ref("team", "e3")},
		},
		listErrs: map[string]error{"cal-b": errors.New("403 forbidden")},
		schedules: map[string]model.ExternalSchedule{
			"e1": {ID: "e1", Title: "One", OrganizerID: "mgr", AttendeeIDs: []string{"exec1"}, EndTime: model.TimePtr(testNow.Add(2 * time.Hour))},
			"e2": {ID: "e2", Title: "Two", OrganizerID: "mgr", AttendeeIDs: []string{"exec2"}, EndTime: model.TimePtr(testNow.Add(72 * time.Hour))},
			"e3": {ID: "e3", Title: "No people"},
		},
		getErrs: map[string]error{
			"gone": google.ErrScheduleNotFound,
			"bad":  errors.New("500 backend error"),
		},
	}
	s, st := newSyncer(t, p, service.Settings{DefaultCalendarID: "team", UserCalendarMap: "alice:cal-a,bob:cal-b"})

	sum := s.Run(context.Background())
	if sum.Status != StatusOK {
		t.Fatalf("status = %s (%s)", sum.Status, sum.Reason)
	}
	if sum.CalendarsQueried != 3 || sum.CalendarsSucceeded != 2 || sum.CalendarsFailed != 1 {
		t.Errorf("calendar counts: %+v", sum)
	}
	if sum.SchedulesSeen != 6 || sum.SchedulesUnique != 5 {
		t.Errorf("schedule counts: seen=%d unique=%d", sum.SchedulesSeen, sum.SchedulesUnique)
	}
	if sum.Inserted != 2 || sum.Updated != 0 || sum.Skipped != 2 || sum.Failed != 1 {
		t.Errorf("reconcile counts: %+v", sum)
	}
	if sum.RemindersChecked != 2 || sum.RemindersSent != 1 {
		t.Errorf("reminder counts: checked=%d sent=%d", sum.RemindersChecked, sum.RemindersSent)
	}
	if len(sum.Errors) != 2 {
		t.Errorf("errors = %+v", sum.Errors)
	}
	for _, g := range p.gets {
		if g == "team/e1" {
			t.Error("e1 should only be fetched once per run")
		}
	}

	task, err := st.GetTaskByScheduleID(context.Background(), "e1")
	if err != nil {
		t.Fatalf("e1 not stored: %v", err)
	}
	if task.OwnerID != "alice" || task.OwnerCalendarID != "cal-a" {
		t.Errorf("e1 should belong to the first calendar that listed it: %+v", task)
	}

	// A second run finds the same schedules and only updates.
	sum = s.Run(context.Background())
	if sum.Inserted != 0 || sum.Updated != 2 {
		t.Errorf("second run: %+v", sum)
	}
}

func TestRunWithoutTargetsIsSkipped(t *testing.T) {
	s, _ := newSyncer(t, &fakeProvider{}, service.Settings{})
	sum := s.Run(context.Background())
	if sum.Status != StatusSkipped || sum.Reason != ReasonNoSyncTargets {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

type panickyTasks struct{}

func (panickyTasks) SyncTargets(context.Context) ([]model.SyncTarget, error) {
	panic("boom")
}

func (panickyTasks) SyncScheduleTask(context.Context, model.ExternalSchedule, model.SyncTarget) (service.SyncResult, error) {
	return service.SyncResult{}, nil
}

func TestRunRecoversPanic(t *testing.T) {
	s := New(zerolog.Nop(), &fakeProvider{}, panickyTasks{}, nil)
	sum := s.Run(context.Background())
	if sum.Status != StatusFailed || sum.Reason != "panic: boom" {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set")
	}
}

func TestSkip(t *testing.T) {
	sum := Skip(ReasonInProgress, testNow)
	if sum.Status != StatusSkipped || sum.Reason != ReasonInProgress || !sum.StartedAt.Equal(testNow) {
		t.Errorf("unexpected summary: %+v", sum)
	}
}
