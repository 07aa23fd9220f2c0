// Package watchdog periodically flags feeds whose controllers stopped
// heartbeating into the feeds table.
package watchdog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/camera-sentry/internal/database"
)

const watchInterval = 30 * time.Second

type Watchdog struct {
	db  *database.Database
	log *zap.Logger
}

func New(db *database.Database, log *zap.Logger) *Watchdog {
	return &Watchdog{db: db, log: log}
}

func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watchdog stopped")
			return
		case <-ticker.C:
			w.checkFeeds(ctx)
		}
	}
}

func (w *Watchdog) checkFeeds(ctx context.Context) {
	stale, err := w.db.FindStaleFeeds(ctx, watchInterval*2)
	if err != nil {
		w.log.Warn("failed to scan for stale feeds", zap.Error(err))
		return
	}

	for _, name := range stale {
		w.log.Warn("feed has not heartbeaten recently", zap.String("feed", name))
	}
}
