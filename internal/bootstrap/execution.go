package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunExecution runs the worker pool and the timeout sweep until ctx is done.
// PENDING tasks left over from a previous run are re-dispatched once at start.
func (a *App) RunExecution(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Pool.Run(gctx)
	})
	g.Go(func() error {
		if _, err := a.MaintenanceUC.RecoverPending(gctx); err != nil && gctx.Err() == nil {
			slog.Error("analysis_recovery_failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		a.sweepTimeouts(gctx, a.Config.TimeoutSweepInterval())
		return nil
	})

	return g.Wait()
}

func (a *App) sweepTimeouts(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.MaintenanceUC.FailTimedOut(ctx); err != nil && ctx.Err() == nil {
				slog.Error("analysis_timeout_sweep_failed", "error", err)
			}
		}
	}
}
