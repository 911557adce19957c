package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	return mr, rc
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	mr, rc := newClient(t)
	ctx := context.Background()

	a := NewRedisLock(rc, "queue", time.Minute)
	b := NewRedisLock(rc, "queue", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:queue"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("lock:queue"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseKeepsForeignLock(t *testing.T) {
	mr, rc := newClient(t)
	ctx := context.Background()

	a := NewRedisLock(rc, "queue", time.Second)
	b := NewRedisLock(rc, "queue", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Release(ctx))
	assert.True(t, mr.Exists("lock:queue"))
}

func TestRedisLock_Unavailable(t *testing.T) {
	mr, rc := newClient(t)
	mr.Close()

	_, err := NewRedisLock(rc, "queue", time.Minute).Acquire(context.Background())
	assert.Error(t, err)
}
