package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "mastercom/pkg/domain"
)

const reviewLockPrefix = "mastercom:review-lock:"

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLock is a review lock shared by every server instance, using
// SET NX PX with a random token per holder.
type RedisLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLock(client redis.UniversalClient, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{client: client, ttl: ttl}
}

func reviewLockKey(requestID id.DeletionRequestID) string {
	return reviewLockPrefix + requestID.String()
}

func (l *RedisLock) Acquire(ctx context.Context, requestID id.DeletionRequestID) (Release, error) {
	key := reviewLockKey(requestID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire review lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	var (
		once       sync.Once
		releaseErr error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("release review lock: %w", err)
			}
		})
		return releaseErr
	}, nil
}
