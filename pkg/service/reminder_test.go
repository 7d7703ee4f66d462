package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

func TestDispatchTaskReminderCooldown(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	clock := testNow
	svc, n := newTestService(t, st, Settings{ReminderCooldown: 12 * time.Hour}, WithClock(func() time.Time { return clock }))

	task := pendingTask("s1")
	task.EndTime = model.TimePtr(testNow.Add(6 * time.Hour))
	seedTask(t, st, task)

	res, err := svc.DispatchTaskReminder(ctx, task)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if !res.Sent || res.Kind != model.ReminderDueSoon {
		t.Fatalf("first reminder should be sent: %+v", res)
	}
	stored, _ := st.GetTaskByScheduleID(ctx, "s1")
	if stored.LastReminderKind != model.ReminderDueSoon || stored.LastReminderAt == nil {
		t.Fatalf("reminder not stamped: %+v", stored)
	}

	clock = testNow.Add(time.Hour)
	res, _ = svc.DispatchTaskReminder(ctx, stored)
	if res.Attempted {
		t.Errorf("repeat within cooldown should be held back: %+v", res)
	}

	// Past the end time the kind changes, so the cooldown does not apply.
	clock = testNow.Add(7 * time.Hour)
	stored, _ = st.GetTaskByScheduleID(ctx, "s1")
	res, _ = svc.DispatchTaskReminder(ctx, stored)
	if !res.Sent || res.Kind != model.ReminderOverdue {
		t.Errorf("kind change should send: %+v", res)
	}

	clock = testNow.Add(19 * time.Hour)
	stored, _ = st.GetTaskByScheduleID(ctx, "s1")
	res, _ = svc.DispatchTaskReminder(ctx, stored)
	if !res.Sent {
		t.Errorf("same kind after cooldown should send: %+v", res)
	}
	if n.count("executor") != 3 {
		t.Errorf("executor notifications = %d, want 3", n.count("executor"))
	}
}

func TestDispatchTaskReminderNoExecutor(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, n := newTestService(t, st, Settings{})

	task := pendingTask("s1")
	task.ExecutorID = ""
	task.EndTime = model.TimePtr(testNow.Add(-time.Hour))
	seedTask(t, st, task)

	res, err := svc.DispatchTaskReminder(ctx, task)
	if err != nil || res.Attempted {
		t.Fatalf("expected skip, got %+v err=%v", res, err)
	}
	stored, _ := st.GetTaskByScheduleID(ctx, "s1")
	if stored.LastReminderAt != nil {
		t.Errorf("skip must not stamp: %+v", stored)
	}
	if len(n.calls) != 0 {
		t.Errorf("no notification expected")
	}
}

func TestDispatchTaskReminderTransportFailureStillStamps(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, n := newTestService(t, st, Settings{})
	n.err = errors.New("timeout")

	task := pendingTask("s1")
	task.EndTime = model.TimePtr(testNow.Add(-time.Hour))
	seedTask(t, st, task)

	res, err := svc.DispatchTaskReminder(ctx, task)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if !res.Attempted || res.Sent {
		t.Errorf("want attempted but not sent, got %+v", res)
	}
	stored, _ := st.GetTaskByScheduleID(ctx, "s1")
	if stored.LastReminderKind != model.ReminderOverdue || stored.LastReminderAt == nil {
		t.Errorf("attempt should be stamped: %+v", stored)
	}
}

func TestDispatchTaskReminderIgnoresNonPending(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, _ := newTestService(t, st, Settings{})

	task := pendingTask("s1")
	task.Status = model.StatusWaitingVerify
	task.EndTime = model.TimePtr(testNow.Add(-time.Hour))
	seedTask(t, st, task)

	res, _ := svc.DispatchTaskReminder(ctx, task)
	if res.Kind != model.ReminderNone || res.Attempted {
		t.Errorf("waiting task should not be reminded: %+v", res)
	}
}
