package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streampay/pkg/retry"
)

type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	// Connect bounds the whole startup handshake, retries included.
	Connect time.Duration
	Retry   retry.Config
}

func DefaultClientOptions(address string) ClientOptions {
	r := retry.DefaultConfig()
	r.MaxAttempts = 2
	r.InitialDelay = 100 * time.Millisecond
	return ClientOptions{
		Address:  address,
		PoolSize: 10,
		Connect:  5 * time.Second,
		Retry:    r,
	}
}

// NewRedisClient connects, waits for the server to answer and migrates the
// ledger key schema. A client that cannot be migrated is never returned.
func NewRedisClient(opts ClientOptions, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.Connect)
	defer cancel()

	err := retry.Retry(ctx, opts.Retry, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Address, err)
	}

	if err := Migrate(ctx, client, logger); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	version, err := getSchemaVersion(ctx, client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read ledger schema version: %w", err)
	}
	if logger != nil {
		logger.Infow("connected to redis ledger",
			"address", opts.Address,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
			"schema_version", version,
		)
	}

	return client, nil
}

func CloseRedisClient(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
