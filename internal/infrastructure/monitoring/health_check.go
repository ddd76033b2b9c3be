package monitoring

import (
	"context"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type HealthChecker struct {
	checks []HealthCheck
	last   map[string]string
	mu     sync.RWMutex
}

type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Interval time.Duration
	Timeout  time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make([]HealthCheck, 0),
		last:   make(map[string]string),
	}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error, interval, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, HealthCheck{
		Name:     name,
		Check:    check,
		Interval: interval,
		Timeout:  timeout,
	})
}

func (h *HealthChecker) run(ctx context.Context, check HealthCheck) string {
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := StatusHealthy
	if err := check.Check(checkCtx); err != nil {
		result = err.Error()
	}

	h.mu.Lock()
	h.last[check.Name] = result
	h.mu.Unlock()
	return result
}

func (h *HealthChecker) snapshotChecks() []HealthCheck {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]HealthCheck(nil), h.checks...)
}

// CheckAll runs every check now.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}
	for _, check := range h.snapshotChecks() {
		result := h.run(ctx, check)
		status.Checks[check.Name] = result
		if result != StatusHealthy {
			status.Status = StatusUnhealthy
		}
	}
	return status
}

// LastStatus reports the most recent result of each check without running
// them. Checks that never ran are reported as "pending".
func (h *HealthChecker) LastStatus() HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, check := range h.checks {
		result, ok := h.last[check.Name]
		if !ok {
			result = "pending"
		}
		status.Checks[check.Name] = result
		if result != StatusHealthy {
			status.Status = StatusUnhealthy
		}
	}
	return status
}

func (h *HealthChecker) StartBackgroundChecks(ctx context.Context) {
	for _, check := range h.snapshotChecks() {
		go h.runCheckPeriodically(ctx, check)
	}
}

func (h *HealthChecker) runCheckPeriodically(ctx context.Context, check HealthCheck) {
	ticker := time.NewTicker(check.Interval)
	defer ticker.Stop()

	h.run(ctx, check)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.run(ctx, check)
		}
	}
}
