package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/service"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

type fakeSource struct {
	tasks      []*model.Task
	listErr    error
	results    map[string]service.ReminderResult
	errs       map[string]error
	gotFilter  store.Filter
	dispatched []string
}

func (f *fakeSource) ListTasks(_ context.Context, filter store.Filter) ([]*model.Task, error) {
	f.gotFilter = filter
	return f.tasks, f.listErr
}

func (f *fakeSource) DispatchTaskReminder(_ context.Context, task *model.Task) (service.ReminderResult, error) {
	f.dispatched = append(f.dispatched, task.ExternalScheduleID)
	return f.results[task.ExternalScheduleID], f.errs[task.ExternalScheduleID]
}

func TestSweepCounts(t *testing.T) {
	src := &fakeSource{
		tasks: []*model.Task{
			{ExternalScheduleID: "a"},
			{ExternalScheduleID: "b"},
			{ExternalScheduleID: "c"},
		},
		results: map[string]service.ReminderResult{
			"a": {Kind: model.ReminderDueSoon, Attempted: true, Sent: true},
			"b": {Kind: model.ReminderOverdue, Attempted: true},
		},
		errs: map[string]error{"c": errors.New("stamp failed")},
	}
	d := NewDispatcher(zerolog.Nop(), src)

	sum, err := d.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	want := Summary{Checked: 3, Attempted: 2, Sent: 1, Failed: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
	if src.gotFilter.Status != model.StatusPending {
		t.Errorf("sweep should only list pending tasks, got %+v", src.gotFilter)
	}
	if len(src.dispatched) != 3 {
		t.Errorf("every task should be dispatched, got %v", src.dispatched)
	}
}

func TestSweepListError(t *testing.T) {
	src := &fakeSource{listErr: errors.New("db down")}
	if _, err := NewDispatcher(zerolog.Nop(), src).Sweep(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestSweepWithService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	st := store.NewMemory()
	svc := service.NewTaskService(zerolog.Nop(), st, noopNotifier{}, service.Settings{},
		service.WithClock(func() time.Time { return now }))

	for _, task := range []*model.Task{
		{ExternalScheduleID: "soon", ExecutorID: "e", Status: model.StatusPending, EndTime: model.TimePtr(now.Add(time.Hour))},
		{ExternalScheduleID: "far", ExecutorID: "e", Status: model.StatusPending, EndTime: model.TimePtr(now.Add(72 * time.Hour))},
		{ExternalScheduleID: "done", ExecutorID: "e", Status: model.StatusCompleted, EndTime: model.TimePtr(now.Add(-time.Hour))},
	} {
		if _, err := st.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	}

	d := NewDispatcher(zerolog.Nop(), svc)
	sum, _ := d.Sweep(ctx)
	if sum.Checked != 2 || sum.Sent != 1 {
		t.Errorf("first sweep = %+v", sum)
	}
	sum, _ = d.Sweep(ctx)
	if sum.Sent != 0 {
		t.Errorf("second sweep inside cooldown should send nothing, got %+v", sum)
	}
}

type noopNotifier struct{}

func (noopNotifier) NotifyExecutor(context.Context, *model.Task, string, string, []model.Action) error {
	return nil
}
func (noopNotifier) NotifyVerifiers(context.Context, *model.Task, []string) error { return nil }
func (noopNotifier) NotifyResult(context.Context, *model.Task, bool, string) error { return nil }
