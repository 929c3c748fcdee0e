package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/Krisa786/glob-mart-sub001/internal/kafka"
	"github.com/Krisa786/glob-mart-sub001/internal/redisx"
)

// Consumer reacts to order and payment events: order.placed confirms the
// session's holds, order.payment.failed releases them.
type Consumer struct {
	Service *Service
	Redis   *redis.Client // nil disables dedup
	Log     *zap.Logger
}

// HandleOrderPlaced is wired as the order.placed consumer handler.
func (c *Consumer) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != EventOrderPlaced {
		return nil
	}
	if c.seen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	if _, err := c.Service.ConfirmReservations(ctx, p.CheckoutID, env.Producer); err != nil {
		switch {
		case errors.Is(err, ErrCheckoutNotFound):
			c.Log.Warn("order placed for unknown checkout", zap.String("checkout_id", p.CheckoutID))
			return nil
		case errors.Is(err, ErrCheckoutExpired):
			// The order landed after the hold lapsed. Nothing to confirm; the
			// caller must re-reserve via a fresh session.
			c.Log.Warn("order placed after checkout expiry",
				zap.String("checkout_id", p.CheckoutID), zap.String("order_id", p.OrderID))
			return nil
		}
		return err
	}
	return c.Service.CompleteSession(ctx, p.CheckoutID, env.TraceID)
}

// HandlePaymentFailed is wired as the order.payment.failed consumer handler.
func (c *Consumer) HandlePaymentFailed(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != EventPaymentFailed {
		return nil
	}
	if c.seen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[PaymentFailedPayload](env.Payload)
	if err != nil {
		return err
	}

	reason := p.Reason
	if reason == "" {
		reason = "payment_failed"
	}
	if err := c.Service.FailSession(ctx, p.CheckoutID, reason); err != nil {
		if errors.Is(err, ErrCheckoutNotFound) {
			c.Log.Warn("payment failure for unknown checkout", zap.String("checkout_id", p.CheckoutID))
			return nil
		}
		if errors.Is(err, ErrIllegalTransition) {
			// Session already terminal; holds were released above.
			return nil
		}
		return err
	}
	return nil
}

// seen marks an event id processed and reports whether it already was.
func (c *Consumer) seen(ctx context.Context, eventID string) bool {
	if c.Redis == nil {
		return false
	}
	dkey := fmt.Sprintf(redisx.KeyDedup, "checkout", eventID)
	exists, _ := redisx.Exists(ctx, c.Redis, dkey)
	if exists {
		return true
	}
	_ = c.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return false
}
