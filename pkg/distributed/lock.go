package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout = errors.New("lock acquisition timeout")
	ErrLockNotHeld = errors.New("lock was not held by this instance")
)

// Only the holder that wrote the value may delete or extend the key.
var (
	unlockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	renewScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

const defaultPollInterval = 25 * time.Millisecond

// DistributedLock is a redis SET NX lock renewed at half its TTL while held.
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
	poll   time.Duration

	stopOnce  sync.Once
	stopRenew chan struct{}
}

func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client:    client,
		key:       key,
		value:     uuid.NewString(),
		ttl:       ttl,
		poll:      defaultPollInterval,
		stopRenew: make(chan struct{}),
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// LockWithTimeout blocks until the lock is acquired, ctx is done or timeout
// elapses. A zero timeout waits for ctx only.
func (l *DistributedLock) LockWithTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		acquired, err := l.TryLock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s", ErrLockTimeout, l.key)
			}
			return err
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrLockTimeout, l.key)
		case <-time.After(l.poll):
		}
	}
}

func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if acquired {
		go l.renew()
	}
	return acquired, nil
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopRenew) })

	result, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.key, err)
	}
	if result == 0 {
		return fmt.Errorf("%w: %s", ErrLockNotHeld, l.key)
	}
	return nil
}

func (l *DistributedLock) renew() {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			held, err := renewScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || held == 0 {
				return
			}
		case <-l.stopRenew:
			return
		}
	}
}

func (l *DistributedLock) IsLocked(ctx context.Context) (bool, error) {
	exists, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// LockManager namespaces locks under a key prefix.
type LockManager struct {
	client *redis.Client
	prefix string
}

func NewLockManager(client *redis.Client, prefix string) *LockManager {
	return &LockManager{
		client: client,
		prefix: prefix,
	}
}

func (lm *LockManager) NewLock(key string, ttl time.Duration) *DistributedLock {
	return NewDistributedLock(lm.client, lm.prefix+key, ttl)
}
