package watcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Poll calls fn every interval until ctx is done. A non-positive interval returns at once.
func Poll(ctx context.Context, interval time.Duration, fn func(ctx context.Context), logger *logrus.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = logrus.New()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.WithField("interval", interval.String()).Info("Started refresh loop")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Stopping refresh loop")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
