package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

func TestExecutorMessageRequiresRecipient(t *testing.T) {
	_, err := executorMessage(&model.Task{ExternalScheduleID: "s1"}, "t", "b", nil, time.Now())
	if !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}

	msg, err := executorMessage(&model.Task{ID: 7, ExternalScheduleID: "s1", ExecutorID: "exec1"}, "t", "b",
		[]model.Action{{Key: model.ActionComplete, Label: "done"}}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != KindExecutor || len(msg.Recipients) != 1 || msg.Recipients[0] != "exec1" || msg.TaskID != 7 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if len(msg.Actions) != 1 || msg.Actions[0].Key != model.ActionComplete {
		t.Errorf("actions not carried: %+v", msg.Actions)
	}
}

func TestVerifierMessageOffersPassAndReject(t *testing.T) {
	task := &model.Task{ExternalScheduleID: "s1", ExecutorID: "exec1", Title: "Report"}
	if _, err := verifierMessage(task, nil, time.Now()); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	msg, err := verifierMessage(task, []string{"mgr", "boss"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Actions) != 2 || msg.Actions[0].Key != model.ActionPass || msg.Actions[1].Key != model.ActionReject {
		t.Errorf("unexpected actions: %+v", msg.Actions)
	}
}

func TestResultMessage(t *testing.T) {
	task := &model.Task{ExternalScheduleID: "s1", ExecutorID: "exec1", Title: "Report"}

	approved, _ := resultMessage(task, true, "", time.Now())
	if len(approved.Actions) != 0 || approved.Body != "" {
		t.Errorf("approved result should carry no actions: %+v", approved)
	}

	rejected, _ := resultMessage(task, false, "incomplete", time.Now())
	if rejected.Body != "incomplete" || len(rejected.Actions) != 1 || rejected.Actions[0].Key != model.ActionComplete {
		t.Errorf("unexpected rejected result: %+v", rejected)
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	ctx := context.Background()
	task := &model.Task{ExternalScheduleID: "s1", ExecutorID: "exec1"}

	if err := n.NotifyExecutor(ctx, task, "t", "b", nil); err != nil {
		t.Errorf("NotifyExecutor: %v", err)
	}
	if err := n.NotifyResult(ctx, &model.Task{}, true, ""); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("expected ErrNoRecipient, got %v", err)
	}
}
