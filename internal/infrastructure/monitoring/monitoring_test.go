package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streampay/internal/core/domain"
	"streampay/internal/infrastructure/repositories/memory"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.ObserveTransition("pay", nil, time.Millisecond)
	c.ObserveTransition("pay", nil, time.Millisecond)
	c.ObserveTransition("cancel", domain.ErrExcessiveCancellation, time.Millisecond)
	c.AddValueMoved("pay", 1000)
	c.AddValueMoved("pay", 500)
	c.IncPublishFailures()
	c.SetFeedClients(3)
	c.ObserveSnapshot(nil)
	c.ObserveSnapshot(errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitionsTotal.WithLabelValues("pay", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitionsTotal.WithLabelValues("cancel", "excessive_cancellation")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(c.valueMovedTotal.WithLabelValues("pay")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.publishFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.feedClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshotsRun.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.transitionDuration))
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.AddLedgerCheck(memory.NewMemoryLedger(), time.Minute, time.Second)

	assert.Equal(t, StatusUnhealthy, h.LastStatus().Status, "checks that never ran are pending")
	assert.True(t, h.IsReady(context.Background()))
	assert.Equal(t, StatusHealthy, h.LastStatus().Checks["ledger"])

	h.AddCheck("broken", func(ctx context.Context) error {
		return errors.New("down")
	}, time.Minute, time.Second)
	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "down", status.Checks["broken"])
	assert.Equal(t, StatusHealthy, status.Checks["ledger"])
}

func TestHealthChecker_RedisAndBackground(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := NewHealthChecker()
	h.AddRedisCheck(client, 10*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.StartBackgroundChecks(ctx)

	require.Eventually(t, func() bool {
		return h.LastStatus().Status == StatusHealthy
	}, time.Second, 5*time.Millisecond)

	mr.Close()
	require.Eventually(t, func() bool {
		return h.LastStatus().Status == StatusUnhealthy
	}, 2*time.Second, 10*time.Millisecond)
}
