package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRedisClient_MigratesSchema(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(DefaultClientOptions(mr.Addr()), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer CloseRedisClient(client)

	version, err := getSchemaVersion(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, len(getMigrations()), version)
	assert.True(t, mr.Exists(createdAtKey))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	opts := DefaultClientOptions(addr)
	opts.Retry.InitialDelay = time.Millisecond
	_, err := NewRedisClient(opts, nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestCloseRedisClient_Nil(t *testing.T) {
	assert.NoError(t, CloseRedisClient(nil))
}
