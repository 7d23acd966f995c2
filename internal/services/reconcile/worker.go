// Package reconcile polls the processor for payments parked on hold.
package reconcile

import (
	"context"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/services/settlement"

	"go.uber.org/zap"
)

// PaymentLister finds payments waiting for reconciliation.
type PaymentLister interface {
	ListOnHold(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)
}

type Config struct {
	// Interval between passes; 0 disables the worker.
	Interval time.Duration
	// MinAge skips payments updated more recently than this.
	MinAge    time.Duration
	BatchSize int
}

// Stats summarizes one pass.
type Stats struct {
	Checked int
	Changed int
	Errors  int
}

type Worker struct {
	payments PaymentLister
	settle   settlement.Service
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func NewWorker(payments PaymentLister, settle settlement.Service, cfg Config, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Worker{
		payments: payments,
		settle:   settle,
		cfg:      cfg,
		log:      log.With(zap.String("service", "reconcile")),
		now:      time.Now,
	}
}

// Run blocks until ctx is done, running a pass on every tick.
func (w *Worker) Run(ctx context.Context) {
	if w.cfg.Interval <= 0 {
		w.log.Info("reconciliation worker disabled")
		return
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("reconciliation worker started", zap.Duration("interval", w.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce reconciles one batch. A failing payment does not stop the batch;
// it is picked up again on the next pass.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	payments, err := w.payments.ListOnHold(ctx, w.now().Add(-w.cfg.MinAge), w.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	if len(payments) == 0 {
		return stats, nil
	}

	w.log.Info("reconciling on-hold payments", zap.Int("count", len(payments)))

	for _, p := range payments {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Checked++

		out, err := w.settle.Reconcile(ctx, p.ID)
		if err != nil {
			stats.Errors++
			w.log.Warn("failed to reconcile payment", zap.String("payment_id", p.ID.String()), zap.Error(err))
			continue
		}
		if out.Changed {
			stats.Changed++
			w.log.Info("payment reconciled",
				zap.String("payment_id", p.ID.String()),
				zap.String("status", string(out.Payment.Status)),
			)
		}
	}
	return stats, nil
}
