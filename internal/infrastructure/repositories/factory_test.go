package repositories

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streampay/internal/infrastructure/repositories/memory"
	redisrepo "streampay/internal/infrastructure/repositories/redis"
	"streampay/pkg/config"
)

func TestFactory_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.False(t, f.UsingRedis())
	assert.Nil(t, f.RedisClient())
	assert.IsType(t, &memory.MemoryLedger{}, f.CreateLedger())
	assert.NoError(t, f.HealthCheck(context.Background()))
	assert.NoError(t, f.Close())
}

func TestFactory_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.DefaultConfig()
	cfg.Ledger.Backend = "redis"
	cfg.Redis.Address = mr.Addr()

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.UsingRedis())
	assert.IsType(t, &redisrepo.RedisLedger{}, f.CreateLedger())
	assert.NoError(t, f.HealthCheck(context.Background()))
}

func TestFactory_RedisUnreachableFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.DefaultConfig()
	cfg.Ledger.Backend = "redis"
	cfg.Redis.Address = addr

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.False(t, f.UsingRedis())
	assert.IsType(t, &memory.MemoryLedger{}, f.CreateLedger())
}

func TestFactory_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Ledger.Backend = "sqlite"
	_, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
}
