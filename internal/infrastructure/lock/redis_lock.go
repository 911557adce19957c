package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

type client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisLock is a SET NX PX lock. The owner token is random per instance, so
// Release never drops a lock another process took after ours expired.
type RedisLock struct {
	client client
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisLock(c client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: c,
		key:    keyPrefix + key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("RedisLock - Acquire - l.client.SetNX: %w", err)
	}

	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil {
		return fmt.Errorf("RedisLock - Release - releaseScript.Run: %w", err)
	}

	return nil
}
