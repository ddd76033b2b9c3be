package repositories

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streampay/internal/core/ports"
	"streampay/internal/infrastructure/repositories/memory"
	redisrepo "streampay/internal/infrastructure/repositories/redis"
	"streampay/pkg/config"
	"streampay/pkg/retry"
)

// RepositoryFactory picks the ledger backend. A redis backend that cannot be
// reached at startup falls back to memory with a warning.
type RepositoryFactory struct {
	cfg         *config.Config
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		cfg:    cfg,
		logger: logger,
	}

	switch cfg.Ledger.Backend {
	case "memory":
	case "redis":
		opts := redisrepo.DefaultClientOptions(cfg.Redis.Address)
		opts.Password = cfg.Redis.Password
		opts.DB = cfg.Redis.DB
		opts.PoolSize = cfg.Redis.PoolSize
		client, err := redisrepo.NewRedisClient(opts, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory ledger",
				"error", err,
			)
			break
		}
		factory.redisClient = client
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	return factory, nil
}

// NewRepositoryFactoryWithClient uses an existing redis client.
func NewRepositoryFactoryWithClient(cfg *config.Config, client *redis.Client, logger *zap.SugaredLogger) *RepositoryFactory {
	return &RepositoryFactory{
		cfg:         cfg,
		redisClient: client,
		logger:      logger,
	}
}

func (f *RepositoryFactory) UsingRedis() bool {
	return f.redisClient != nil
}

// RedisClient returns the shared client, or nil on the memory backend.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) CreateLedger() ports.Ledger {
	if f.redisClient == nil {
		f.logger.Info("using memory ledger")
		return memory.NewMemoryLedger()
	}

	opts := redisrepo.DefaultLedgerOptions()
	opts.LockTTL = f.cfg.Ledger.LockTTL
	opts.LockTimeout = f.cfg.Ledger.LockTimeout
	opts.Retry = retry.Config{
		Enabled:      f.cfg.Ledger.CommitRetry.MaxAttempts > 0,
		MaxAttempts:  f.cfg.Ledger.CommitRetry.MaxAttempts,
		InitialDelay: f.cfg.Ledger.CommitRetry.InitialDelay,
		MaxDelay:     f.cfg.Ledger.CommitRetry.MaxDelay,
		Multiplier:   2.0,
		Jitter:       true,
		NonRetryable: []error{context.Canceled, context.DeadlineExceeded},
	}

	f.logger.Infow("using redis ledger", "address", f.cfg.Redis.Address)
	return redisrepo.NewRedisLedger(f.redisClient, opts, f.logger)
}

func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

func (f *RepositoryFactory) Close() error {
	return redisrepo.CloseRedisClient(f.redisClient)
}
