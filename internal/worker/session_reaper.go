package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/service"
)

// StartSessionReaper periodically archives conversations that have been
// idle past the inactivity timeout. It stops when ctx is canceled.
func StartSessionReaper(ctx context.Context, svc *service.ConversationService, maxIdle, interval time.Duration, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := svc.ArchiveIdle(ctx, maxIdle); n > 0 {
					logger.Info("inactive conversations archived", zap.Int("count", n))
				}
			}
		}
	}()
}
