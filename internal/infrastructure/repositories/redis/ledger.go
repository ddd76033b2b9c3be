package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/internal/infrastructure/repositories/txn"
	"streampay/pkg/distributed"
	"streampay/pkg/retry"
)

const lockKeyPrefix = keyPrefix + "lock:"

type LedgerOptions struct {
	LockTTL     time.Duration
	LockTimeout time.Duration
	Retry       retry.Config
}

func DefaultLedgerOptions() LedgerOptions {
	opts := LedgerOptions{
		LockTTL:     5 * time.Second,
		LockTimeout: 3 * time.Second,
		Retry:       retry.DefaultConfig(),
	}
	opts.Retry.NonRetryable = []error{context.Canceled, context.DeadlineExceeded}
	return opts
}

// RedisLedger stores each account as JSON under its own key. Executions lock
// their declared addresses in sorted order and commit in a MULTI/EXEC block,
// so executions over disjoint accounts proceed in parallel across processes.
type RedisLedger struct {
	client *redis.Client
	locks  *distributed.LockManager
	opts   LedgerOptions
	logger *zap.SugaredLogger
}

func NewRedisLedger(client *redis.Client, opts LedgerOptions, logger *zap.SugaredLogger) *RedisLedger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RedisLedger{
		client: client,
		locks:  distributed.NewLockManager(client, lockKeyPrefix),
		opts:   opts,
		logger: logger,
	}
}

func accountKey(addr domain.Address) string {
	return accountKeyPrefix + addr.String()
}

func (l *RedisLedger) load(ctx context.Context) txn.Loader {
	return func(addr domain.Address) (*domain.Account, error) {
		return l.get(ctx, addr)
	}
}

func (l *RedisLedger) get(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	data, err := l.client.Get(ctx, accountKey(addr)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var acct domain.Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("%w: account %s: %v", domain.ErrCorruptRecord, addr, err)
	}
	return &acct, nil
}

func (l *RedisLedger) lockAll(ctx context.Context, addrs []domain.Address) (func(), error) {
	held := make([]*distributed.DistributedLock, 0, len(addrs))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Unlock(context.Background()); err != nil {
				l.logger.Warnw("failed to release account lock", "key", held[i].Key(), "error", err)
			}
		}
	}

	for _, addr := range addrs {
		lock := l.locks.NewLock(addr.String(), l.opts.LockTTL)
		if err := lock.LockWithTimeout(ctx, l.opts.LockTimeout); err != nil {
			release()
			return nil, err
		}
		held = append(held, lock)
	}
	return release, nil
}

func (l *RedisLedger) commit(ctx context.Context, accounts []*domain.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(accounts)*2)
	members := make([]interface{}, 0, len(accounts))
	for _, acct := range accounts {
		data, err := json.Marshal(acct)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		values = append(values, accountKey(acct.Address), data)
		members = append(members, acct.Address.String())
	}

	// Writes are plain SETs, so a retried commit is idempotent.
	return retry.Retry(ctx, l.opts.Retry, func() error {
		_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.MSet(ctx, values...)
			pipe.SAdd(ctx, accountIndexKey, members...)
			return nil
		})
		return err
	})
}

func (l *RedisLedger) execute(ctx context.Context, declared []domain.Address, fn func(tx *txn.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addrs := txn.Declared(declared)

	release, err := l.lockAll(ctx, addrs)
	if err != nil {
		return err
	}
	defer release()

	tx := txn.New(addrs, l.load(ctx))
	if err := fn(tx); err != nil {
		return err
	}
	if err := l.commit(ctx, tx.Dirty()); err != nil {
		return fmt.Errorf("failed to commit execution: %w", err)
	}
	return nil
}

func (l *RedisLedger) Execute(ctx context.Context, declared []domain.Address, fn func(tx ports.Tx) error) error {
	return l.execute(ctx, declared, func(tx *txn.Tx) error {
		return fn(tx)
	})
}

func (l *RedisLedger) Account(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	return l.get(ctx, addr)
}

func (l *RedisLedger) Fund(ctx context.Context, addr domain.Address, amount uint64) error {
	return l.execute(ctx, []domain.Address{addr}, func(tx *txn.Tx) error {
		return tx.Mint(addr, amount)
	})
}

// Snapshot reads every indexed account. It does not lock, so it is
// consistent per account only.
func (l *RedisLedger) Snapshot(ctx context.Context) ([]*domain.Account, error) {
	members, err := l.client.SMembers(ctx, accountIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	sort.Strings(members)

	out := make([]*domain.Account, 0, len(members))
	for _, member := range members {
		addr, err := domain.ParseAddress(member)
		if err != nil {
			return nil, fmt.Errorf("%w: index entry %q", domain.ErrCorruptRecord, member)
		}
		acct, err := l.get(ctx, addr)
		if errors.Is(err, domain.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, nil
}

// Restore replaces every stored account with accounts.
func (l *RedisLedger) Restore(ctx context.Context, accounts []*domain.Account) error {
	members, err := l.client.SMembers(ctx, accountIndexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, member := range members {
			pipe.Del(ctx, accountKeyPrefix+member)
		}
		pipe.Del(ctx, accountIndexKey)
		for _, acct := range accounts {
			data, err := json.Marshal(acct)
			if err != nil {
				return fmt.Errorf("failed to marshal account: %w", err)
			}
			pipe.Set(ctx, accountKey(acct.Address), data, 0)
			pipe.SAdd(ctx, accountIndexKey, acct.Address.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to restore accounts: %w", err)
	}

	l.logger.Infow("ledger restored", "accounts", len(accounts), "replaced", len(members))
	return nil
}

func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLedger) Close() error {
	return CloseRedisClient(l.client)
}
