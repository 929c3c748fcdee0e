// Package sweep runs the periodic background pass that releases expired
// stock holds and abandons idle carts.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type CheckoutSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type CartSweeper interface {
	MarkAbandoned(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Runner struct {
	Checkout   CheckoutSweeper
	Carts      CartSweeper
	Interval   time.Duration
	AbandonTTL time.Duration
	Log        *zap.Logger
}

// Run loops until ctx is canceled. Errors are logged and the loop keeps
// going; a failed pass is retried on the next tick.
func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	if _, err := r.Checkout.SweepExpired(ctx); err != nil {
		r.Log.Error("reservation sweep failed", zap.Error(err))
	}
	if r.Carts != nil {
		if _, err := r.Carts.MarkAbandoned(ctx, r.AbandonTTL); err != nil {
			r.Log.Error("cart abandon sweep failed", zap.Error(err))
		}
	}
}
