package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// RedisNotifier publishes notifications as JSON on a pub/sub channel.
// A delivery worker for the messaging platform subscribes to it.
type RedisNotifier struct {
	logger  zerolog.Logger
	client  *redis.Client
	channel string
}

func NewRedisNotifier(logger zerolog.Logger, client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{
		logger:  logger.With().Str("component", "notify").Logger(),
		client:  client,
		channel: channel,
	}
}

func (n *RedisNotifier) NotifyExecutor(ctx context.Context, task *model.Task, title, body string, actions []model.Action) error {
	msg, err := executorMessage(task, title, body, actions, time.Now())
	if err != nil {
		return err
	}
	return n.publish(ctx, msg)
}

func (n *RedisNotifier) NotifyVerifiers(ctx context.Context, task *model.Task, recipients []string) error {
	msg, err := verifierMessage(task, recipients, time.Now())
	if err != nil {
		return err
	}
	return n.publish(ctx, msg)
}

func (n *RedisNotifier) NotifyResult(ctx context.Context, task *model.Task, approved bool, reason string) error {
	msg, err := resultMessage(task, approved, reason, time.Now())
	if err != nil {
		return err
	}
	return n.publish(ctx, msg)
}

func (n *RedisNotifier) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	receivers, err := n.client.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	n.logger.Debug().
		Str("kind", msg.Kind).
		Str("schedule_id", msg.ScheduleID).
		Int64("receivers", receivers).
		Msg("published notification")
	return nil
}
