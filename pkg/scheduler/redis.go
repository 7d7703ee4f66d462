package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-key lease: SET NX with a TTL, released with a
// token check so an expired holder cannot drop a newer lease.
type RedisLock struct {
	logger zerolog.Logger
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLock(logger zerolog.Logger, client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		logger: logger.With().Str("component", "lock").Logger(),
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to set lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// The run context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", l.key).Msg("failed to release lock")
		}
	}
	return release, true, nil
}
