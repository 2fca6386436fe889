package worker

import (
	"context"
	"time"

	"github.com/timelogic/wfm-api/internal/service/notification"
	"github.com/timelogic/wfm-api/pkg/logger"
	"github.com/timelogic/wfm-api/pkg/metrics"
)

// ExpiryCleanup periodically removes notifications whose expiry has passed.
type ExpiryCleanup struct {
	service  *notification.Service
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewExpiryCleanup(service *notification.Service, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *ExpiryCleanup {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryCleanup{
		service:  service,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

func (w *ExpiryCleanup) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting expiry cleanup worker", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down expiry cleanup worker")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ExpiryCleanup) runOnce(ctx context.Context) {
	count, err := w.service.CleanupExpired(ctx)
	if err != nil {
		w.logger.Error(err, "Failed to clean up expired notifications")
		return
	}
	if count > 0 {
		w.metrics.NotificationsExpired.Add(float64(count))
		w.logger.Info("Removed expired notifications", "count", count)
	}
}
