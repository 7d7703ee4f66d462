package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// LogNotifier writes notifications to the log. Used when no broker is
// configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) NotifyExecutor(_ context.Context, task *model.Task, title, body string, actions []model.Action) error {
	msg, err := executorMessage(task, title, body, actions, time.Now())
	if err != nil {
		return err
	}
	n.log(msg)
	return nil
}

func (n *LogNotifier) NotifyVerifiers(_ context.Context, task *model.Task, recipients []string) error {
	msg, err := verifierMessage(task, recipients, time.Now())
	if err != nil {
		return err
	}
	n.log(msg)
	return nil
}

func (n *LogNotifier) NotifyResult(_ context.Context, task *model.Task, approved bool, reason string) error {
	msg, err := resultMessage(task, approved, reason, time.Now())
	if err != nil {
		return err
	}
	n.log(msg)
	return nil
}

func (n *LogNotifier) log(msg Message) {
	n.logger.Info().
		Str("kind", msg.Kind).
		Strs("recipients", msg.Recipients).
		Str("schedule_id", msg.ScheduleID).
		Str("title", msg.Title).
		Msg("notification")
}
