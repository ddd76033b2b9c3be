package monitoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"streampay/internal/core/ports"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, interval, timeout)
}

// AddLedgerCheck adds a check that the ledger backend answers.
func (h *HealthChecker) AddLedgerCheck(ledger ports.Ledger, interval, timeout time.Duration) {
	h.AddCheck("ledger", ledger.Ping, interval, timeout)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
