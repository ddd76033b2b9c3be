package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix        = "streampay:"
	accountKeyPrefix = keyPrefix + "account:"
	accountIndexKey  = keyPrefix + "accounts"
	schemaVersionKey = keyPrefix + "schema:version"
	createdAtKey     = keyPrefix + "meta:created_at"
)

type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
	Down    func(ctx context.Context, client *redis.Client) error
}

// Migrate runs every migration newer than the stored schema version.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	return migrate(ctx, client, getMigrations(), logger)
}

func migrate(ctx context.Context, client *redis.Client, migrations []Migration, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	target := 0
	for _, m := range migrations {
		if m.Version > target {
			target = m.Version
		}
	}

	if currentVersion >= target {
		if logger != nil {
			logger.Debugw("schema is up to date",
				"current_version", currentVersion,
				"target_version", target,
			)
		}
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", target)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// v1 stamps the keyspace so operators can tell when it was created.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				return client.SetNX(ctx, createdAtKey, "v1", 0).Err()
			},
			Down: func(ctx context.Context, client *redis.Client) error {
				return client.Del(ctx, createdAtKey).Err()
			},
		},
		{
			// v2 introduced the account index set. Accounts written before
			// it existed are found by scanning.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client) error {
				iter := client.Scan(ctx, 0, accountKeyPrefix+"*", 256).Iterator()
				for iter.Next(ctx) {
					addr := strings.TrimPrefix(iter.Val(), accountKeyPrefix)
					if err := client.SAdd(ctx, accountIndexKey, addr).Err(); err != nil {
						return err
					}
				}
				return iter.Err()
			},
			Down: func(ctx context.Context, client *redis.Client) error {
				return client.Del(ctx, accountIndexKey).Err()
			},
		},
	}
}
