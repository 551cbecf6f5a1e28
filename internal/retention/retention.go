// Package retention sweeps expired letters out of the working set on a
// schedule. Load-time filtering alone would let the set go stale between
// reloads on a long-running daemon.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"emberpost/pkg/config"
	"emberpost/pkg/logger"
)

// Purger drops expired letters and reports how many were removed. The
// pending queue is deliberately untouched: queued operations outlive their
// letters and keep retrying until delivered.
type Purger interface {
	PurgeExpired() int
}

// Start launches the sweep scheduler when enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig, p Purger) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		// hourly sweep by default; letters live 72h so finer grain buys nothing
		cronExpr = "0 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, p)
	return cancel, nil
}

// runScheduler computes the next tick for the configured cron expression
// and sleeps until then.
func runScheduler(ctx context.Context, cronExpr string, p Purger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			removed := p.PurgeExpired()
			if removed > 0 {
				logger.Info("retention_run_done", "removed", removed)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}
