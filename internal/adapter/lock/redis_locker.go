package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flashline/internal/core/domain"
)

// releaseScript deletes the lock key only while it still carries this
// holder's token. Without the check, a holder whose lease expired could
// release a lock already re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker implements port.Locker as a TTL-leased, token-guarded lease on
// a single Redis key.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return domain.ErrLockBusy
	}

	fnErr := fn(ctx)

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && fnErr == nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return fnErr
}
