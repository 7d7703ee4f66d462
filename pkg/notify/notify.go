// Package notify delivers task notifications. Card rendering and the
// messaging platform's wire protocol live downstream of the messages
// produced here.
package notify

import (
	"errors"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

var ErrNoRecipient = errors.New("notification has no recipient")

// Message kinds.
const (
	KindExecutor = "executor"
	KindVerifier = "verifier"
	KindResult   = "result"
)

// Message is the transport-neutral notification payload.
type Message struct {
	Kind       string         `json:"kind"`
	Recipients []string       `json:"recipients"`
	TaskID     int64          `json:"task_id"`
	ScheduleID string         `json:"schedule_id"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Actions    []model.Action `json:"actions,omitempty"`
	SentAt     time.Time      `json:"sent_at"`
}

func executorMessage(task *model.Task, title, body string, actions []model.Action, now time.Time) (Message, error) {
	if task.ExecutorID == "" {
		return Message{}, ErrNoRecipient
	}
	return Message{
		Kind:       KindExecutor,
		Recipients: []string{task.ExecutorID},
		TaskID:     task.ID,
		ScheduleID: task.ExternalScheduleID,
		Title:      title,
		Body:       body,
		Actions:    actions,
		SentAt:     now,
	}, nil
}

func verifierMessage(task *model.Task, recipients []string, now time.Time) (Message, error) {
	if len(recipients) == 0 {
		return Message{}, ErrNoRecipient
	}
	return Message{
		Kind:       KindVerifier,
		Recipients: recipients,
		TaskID:     task.ID,
		ScheduleID: task.ExternalScheduleID,
		Title:      "Task waiting for verification: " + task.Title,
		Body:       "Submitted by " + task.ExecutorID,
		Actions: []model.Action{
			{Key: model.ActionPass, Label: "Approve"},
			{Key: model.ActionReject, Label: "Reject"},
		},
		SentAt: now,
	}, nil
}

func resultMessage(task *model.Task, approved bool, reason string, now time.Time) (Message, error) {
	if task.ExecutorID == "" {
		return Message{}, ErrNoRecipient
	}
	msg := Message{
		Kind:       KindResult,
		Recipients: []string{task.ExecutorID},
		TaskID:     task.ID,
		ScheduleID: task.ExternalScheduleID,
		SentAt:     now,
	}
	if approved {
		msg.Title = "Task approved: " + task.Title
		return msg, nil
	}
	msg.Title = "Task returned for rework: " + task.Title
	msg.Body = reason
	msg.Actions = []model.Action{{Key: model.ActionComplete, Label: "Mark complete"}}
	return msg, nil
}
