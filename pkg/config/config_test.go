package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultProgramID, cfg.Escrow.ProgramID)
	assert.Equal(t, uint64(100), cfg.Escrow.BaseRate)
	assert.True(t, cfg.Escrow.AllowEmptyWithdraw)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero base rate", func(c *Config) { c.Escrow.BaseRate = 0 }},
		{"empty program id", func(c *Config) { c.Escrow.ProgramID = "" }},
		{"faucet without cap", func(c *Config) {
			c.Escrow.FaucetEnabled = true
			c.Escrow.FaucetMaxAmount = 0
		}},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "postgres" }},
		{"redis without address", func(c *Config) {
			c.Ledger.Backend = "redis"
			c.Redis.Address = ""
		}},
		{"redis without lock ttl", func(c *Config) {
			c.Ledger.Backend = "redis"
			c.Ledger.LockTTL = 0
		}},
		{"bus without redis", func(c *Config) { c.Events.BusEnabled = true }},
		{"pong not after ping", func(c *Config) { c.Events.PongTimeout = c.Events.PingInterval }},
		{"http rps must be > 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"ws max concurrent must be >= 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.WebSocket.MaxConcurrent = -1
		}},
		{"tracing sample rate", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 1.5
		}},
		{"backup without retention", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Retention = 0
		}},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "hunter2" }},
		{"default jwt secret on redis", func(c *Config) {
			c.Ledger.Backend = "redis"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestJWTSecret(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.UsesDefaultJWTSecret())

	require.NoError(t, cfg.GenerateJWTSecret())
	assert.False(t, cfg.UsesDefaultJWTSecret())
	assert.Len(t, cfg.Auth.JWTSecret, 2*minJWTSecretLength)
	first := cfg.Auth.JWTSecret

	require.NoError(t, cfg.GenerateJWTSecret())
	assert.NotEqual(t, first, cfg.Auth.JWTSecret)

	cfg.Ledger.Backend = "redis"
	assert.NoError(t, cfg.Validate(), "a generated secret satisfies the shared ledger")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.yaml")
	yaml := `
server:
  address: ":9000"
escrow:
  base_rate: 250
  allow_empty_withdraw: false
ledger:
  backend: redis
  lock_timeout: 1s
redis:
  address: "redis:6379"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("STREAMPAY_LOG_LEVEL", "debug")
	t.Setenv("STREAMPAY_REDIS_ADDRESS", "cache:6380")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, uint64(250), cfg.Escrow.BaseRate)
	assert.False(t, cfg.Escrow.AllowEmptyWithdraw)
	assert.Equal(t, "redis", cfg.Ledger.Backend)
	assert.Equal(t, time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTTL, "unset keys keep defaults")
	assert.Equal(t, "cache:6380", cfg.Redis.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
