package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_INTERVAL = 15 * time.Second

// HealthChecker is implemented by classifier adapters that can probe their
// backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// MonitorClassifierHealth probes checker once right away and then on every
// tick, storing the outcome in healthy. It returns when ctx is done.
func MonitorClassifierHealth(ctx context.Context, checker HealthChecker, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = HEALTHCHECK_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		isHealthy := checker.HealthCheck(ctx)
		if healthy.Swap(isHealthy) != isHealthy {
			if isHealthy {
				slog.Info("[HealthCheck] Classifier recovered")
			} else {
				slog.Warn("[HealthCheck] Classifier is unhealthy")
			}
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
