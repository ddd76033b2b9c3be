package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedLock_ExclusiveUntilUnlocked(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()
	lm := NewLockManager(client, "test:lock:")

	first := lm.NewLock("acct", time.Second)
	second := lm.NewLock("acct", time.Second)
	assert.Equal(t, "test:lock:acct", first.Key())

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := second.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.LockWithTimeout(ctx, time.Second))
	require.NoError(t, second.Unlock(ctx))
}

func TestDistributedLock_Timeout(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()
	lm := NewLockManager(client, "")

	holder := lm.NewLock("k", time.Second)
	require.NoError(t, holder.LockWithTimeout(ctx, time.Second))
	defer holder.Unlock(ctx)

	err := lm.NewLock("k", time.Second).LockWithTimeout(ctx, 60*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestDistributedLock_UnlockNotHeld(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	l := NewDistributedLock(client, "k", time.Second)
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.Set("k", "someone-else")
	assert.ErrorIs(t, l.Unlock(ctx), ErrLockNotHeld)
	assert.ErrorIs(t, l.Unlock(ctx), ErrLockNotHeld, "second unlock must not panic")
}
