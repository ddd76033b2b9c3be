package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"streampay/pkg/tracing"
)

// DefaultProgramID is base58(sha256("streampay")).
const DefaultProgramID = "ALG2KRazJ9Gnh6Tyndq4eEDR4tsqP91uC8gmfWEgmxXo"

// DefaultJWTSecret is a placeholder. It never signs tokens: the daemon
// swaps it for a random secret, and a shared ledger refuses it outright.
const DefaultJWTSecret = "change-me-in-production"

const minJWTSecretLength = 32

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Escrow struct {
		ProgramID          string        `yaml:"program_id"`
		BaseRate           uint64        `yaml:"base_rate"`
		AllowEmptyWithdraw bool          `yaml:"allow_empty_withdraw"`
		GroupCacheTTL      time.Duration `yaml:"group_cache_ttl"`
		FaucetEnabled      bool          `yaml:"faucet_enabled"`
		FaucetMaxAmount    uint64        `yaml:"faucet_max_amount"`
	} `yaml:"escrow"`

	Ledger struct {
		Backend     string        `yaml:"backend"` // memory | redis
		LockTTL     time.Duration `yaml:"lock_ttl"`
		LockTimeout time.Duration `yaml:"lock_timeout"`
		CommitRetry struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
		} `yaml:"commit_retry"`
	} `yaml:"ledger"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int   `yaml:"connections_per_minute"`
			MaxConcurrent        int   `yaml:"max_concurrent_connections"`
			MaxMessageSizeBytes  int64 `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled   bool          `yaml:"prometheus_enabled"`
		HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	} `yaml:"monitoring"`

	Tracing tracing.Config `yaml:"tracing"`

	Events struct {
		FeedEnabled  bool          `yaml:"feed_enabled"`
		BusEnabled   bool          `yaml:"bus_enabled"`
		BusChannel   string        `yaml:"bus_channel"`
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		Breaker      struct {
			MaxFailures  int           `yaml:"max_failures"`
			ResetTimeout time.Duration `yaml:"reset_timeout"`
		} `yaml:"breaker"`
	} `yaml:"events"`

	Backup struct {
		Enabled   bool          `yaml:"enabled"`
		Directory string        `yaml:"directory"`
		Interval  time.Duration `yaml:"interval"`
		Retention int           `yaml:"retention"`
	} `yaml:"backup"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Escrow.ProgramID == "" {
		return fmt.Errorf("escrow.program_id must not be empty")
	}
	if c.Escrow.BaseRate == 0 {
		return fmt.Errorf("escrow.base_rate must be > 0")
	}
	if c.Escrow.GroupCacheTTL < 0 {
		return fmt.Errorf("escrow.group_cache_ttl must be >= 0")
	}
	if c.Escrow.FaucetEnabled && c.Escrow.FaucetMaxAmount == 0 {
		return fmt.Errorf("escrow.faucet_max_amount must be > 0 when escrow.faucet_enabled=true")
	}

	switch c.Ledger.Backend {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when ledger.backend=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when ledger.backend=redis")
		}
		if c.Ledger.LockTTL <= 0 {
			return fmt.Errorf("ledger.lock_ttl must be > 0")
		}
		if c.Ledger.LockTimeout <= 0 {
			return fmt.Errorf("ledger.lock_timeout must be > 0")
		}
		if c.Ledger.CommitRetry.MaxAttempts < 0 {
			return fmt.Errorf("ledger.commit_retry.max_attempts must be >= 0")
		}
	default:
		return fmt.Errorf("ledger.backend must be memory or redis, got %q", c.Ledger.Backend)
	}

	switch {
	case c.Auth.JWTSecret == "":
		return fmt.Errorf("auth.jwt_secret must not be empty")
	case c.UsesDefaultJWTSecret():
		if c.Ledger.Backend == "redis" {
			return fmt.Errorf("auth.jwt_secret must be set when ledger.backend=redis")
		}
	case len(c.Auth.JWTSecret) < minJWTSecretLength:
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLength)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0 when rate limiting is enabled")
		}
	}

	if c.Monitoring.HealthCheckInterval <= 0 {
		return fmt.Errorf("monitoring.health_check_interval must be > 0")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	if c.Events.FeedEnabled {
		if c.Events.PingInterval <= 0 {
			return fmt.Errorf("events.ping_interval must be > 0 when events.feed_enabled=true")
		}
		if c.Events.PongTimeout <= c.Events.PingInterval {
			return fmt.Errorf("events.pong_timeout must be > events.ping_interval")
		}
	}
	if c.Events.BusEnabled {
		if c.Ledger.Backend != "redis" {
			return fmt.Errorf("events.bus_enabled requires ledger.backend=redis")
		}
		if c.Events.BusChannel == "" {
			return fmt.Errorf("events.bus_channel must not be empty when events.bus_enabled=true")
		}
		if c.Events.Breaker.MaxFailures <= 0 {
			return fmt.Errorf("events.breaker.max_failures must be > 0")
		}
		if c.Events.Breaker.ResetTimeout <= 0 {
			return fmt.Errorf("events.breaker.reset_timeout must be > 0")
		}
	}

	if c.Backup.Enabled {
		if c.Backup.Directory == "" {
			return fmt.Errorf("backup.directory must not be empty when backup.enabled=true")
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup.interval must be > 0 when backup.enabled=true")
		}
		if c.Backup.Retention < 1 {
			return fmt.Errorf("backup.retention must be >= 1 when backup.enabled=true")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
// A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Escrow.ProgramID = DefaultProgramID
	cfg.Escrow.BaseRate = 100
	cfg.Escrow.AllowEmptyWithdraw = true
	cfg.Escrow.GroupCacheTTL = 5 * time.Minute
	cfg.Escrow.FaucetEnabled = false
	cfg.Escrow.FaucetMaxAmount = 1_000_000

	cfg.Ledger.Backend = "memory"
	cfg.Ledger.LockTTL = 5 * time.Second
	cfg.Ledger.LockTimeout = 3 * time.Second
	cfg.Ledger.CommitRetry.MaxAttempts = 3
	cfg.Ledger.CommitRetry.InitialDelay = 50 * time.Millisecond
	cfg.Ledger.CommitRetry.MaxDelay = 2 * time.Second

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = DefaultJWTSecret
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 4 * 1024

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.HealthCheckInterval = 10 * time.Second

	cfg.Tracing = tracing.DefaultConfig()

	cfg.Events.FeedEnabled = true
	cfg.Events.BusEnabled = false
	cfg.Events.BusChannel = "streampay:events"
	cfg.Events.PingInterval = 30 * time.Second
	cfg.Events.PongTimeout = 60 * time.Second
	cfg.Events.Breaker.MaxFailures = 5
	cfg.Events.Breaker.ResetTimeout = 30 * time.Second

	cfg.Backup.Enabled = false
	cfg.Backup.Directory = "./snapshots"
	cfg.Backup.Interval = time.Hour
	cfg.Backup.Retention = 24

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

// UsesDefaultJWTSecret reports whether auth.jwt_secret was left at the placeholder.
func (c *Config) UsesDefaultJWTSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

// GenerateJWTSecret replaces the placeholder secret with a random one.
// Tokens signed with it do not outlive the process.
func (c *Config) GenerateJWTSecret() error {
	buf := make([]byte, minJWTSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	c.Auth.JWTSecret = hex.EncodeToString(buf)
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STREAMPAY_SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("STREAMPAY_PROGRAM_ID"); v != "" {
		c.Escrow.ProgramID = v
	}
	if v := os.Getenv("STREAMPAY_LEDGER_BACKEND"); v != "" {
		c.Ledger.Backend = v
	}
	if v := os.Getenv("STREAMPAY_REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("STREAMPAY_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("STREAMPAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STREAMPAY_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("STREAMPAY_FAUCET_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Escrow.FaucetEnabled = enabled
		}
	}
	if v := os.Getenv("STREAMPAY_BACKUP_DIR"); v != "" {
		c.Backup.Directory = v
	}
}
