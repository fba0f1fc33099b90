// Package worker runs the background reconciliation sweeper: it expires
// overdue orders and settles awaiting on-chain orders even when nobody
// polls, so a transfer made minutes before pressing "check" is not lost.
package worker

import (
	"context"
	"time"

	"starpay/internal/services"

	"go.uber.org/zap"
)

type Worker struct {
	Reconciler *services.Reconciler
	Interval   time.Duration
	Log        *zap.Logger
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		if err := w.Reconciler.SweepOnce(ctx); err != nil {
			w.Log.Warn("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
