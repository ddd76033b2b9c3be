package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts"` // retries after the first attempt
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       bool          `yaml:"jitter"`

	// Retryable decides whether err is transient. Nil retries everything
	// except errors matching NonRetryable.
	Retryable    func(err error) bool `yaml:"-"`
	NonRetryable []error              `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry executes fn with exponential backoff.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes fn with exponential backoff and returns its last result.
func RetryWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	if !cfg.Enabled {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !shouldRetry(cfg, err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled during wait: %w", ctx.Err())
		case <-time.After(calculateDelay(cfg, attempt)):
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

func shouldRetry(cfg Config, err error) bool {
	for _, target := range cfg.NonRetryable {
		if errors.Is(err, target) {
			return false
		}
	}
	if cfg.Retryable != nil {
		return cfg.Retryable(err)
	}
	return true
}

// calculateDelay returns InitialDelay * Multiplier^attempt capped at MaxDelay,
// with up to ±25% jitter when enabled.
func calculateDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		delay += delay * (rand.Float64()*0.5 - 0.25)
	}

	return time.Duration(delay)
}
