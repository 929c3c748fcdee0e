package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Krisa786/glob-mart-sub001/internal/cart"
	kafkax "github.com/Krisa786/glob-mart-sub001/internal/kafka"
	"github.com/Krisa786/glob-mart-sub001/internal/shipping"
	"github.com/Krisa786/glob-mart-sub001/internal/tax"
)

// Carts is the slice of the cart service the checkout flow needs.
type Carts interface {
	GetWithItems(ctx context.Context, cartID string) (*cart.Cart, []cart.Item, error)
	MarkConverted(ctx context.Context, cartID string) error
}

// Publisher matches the async kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store    Store
	Carts    Carts
	Tax      tax.Calculator
	Shipping shipping.Service

	// One producer per outbound topic; nil producers disable emission.
	ProducerReserved  Publisher // checkout.stock.reserved
	ProducerReleased  Publisher // checkout.stock.released
	ProducerCompleted Publisher // checkout.completed
	ProducerExpired   Publisher // checkout.expired

	Log         *zap.Logger
	ServiceName string
	TTL         time.Duration

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateSessionInput struct {
	CartID          string
	UserID          string // empty for guest checkout
	CartToken       string // identifies the guest when UserID is empty
	ShippingAddress Address
	BillingAddress  Address
	ShippingMethod  string
	TraceID         string
}

// CreateSession snapshots the cart into a checkout session and places an
// all-or-nothing hold on stock for every line.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	in.ShippingAddress.Type = AddressShipping
	in.BillingAddress.Type = AddressBilling
	if err := ValidateAddress(&in.ShippingAddress); err != nil {
		return nil, err
	}
	if err := ValidateAddress(&in.BillingAddress); err != nil {
		return nil, err
	}

	c, items, err := s.Carts.GetWithItems(ctx, in.CartID)
	if err != nil {
		return nil, err
	}
	caller := cart.Identity{UserID: in.UserID, Token: in.CartToken}
	if !caller.Owns(c) {
		return nil, cart.ErrCartNotFound
	}
	if c.Status != cart.StatusActive {
		return nil, cart.ErrCartNotActive
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	itemCount := 0
	for _, it := range items {
		itemCount += it.Qty
	}
	shipCents, err := s.Shipping.Cost(ctx, in.ShippingAddress.Country, in.ShippingMethod, itemCount)
	if errors.Is(err, shipping.ErrMethodUnavailable) {
		return nil, ErrShippingUnavailable
	}
	if err != nil {
		return nil, err
	}

	taxable := c.SubtotalCents - c.DiscountTotalCents
	taxCents, err := s.Tax.Calculate(ctx, in.ShippingAddress.Country, c.Currency, taxable)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	sess := &Session{
		ID:                 uuid.NewString(),
		CartID:             c.ID,
		UserID:             in.UserID,
		ShippingMethod:     in.ShippingMethod,
		Currency:           c.Currency,
		TaxTotalCents:      taxCents,
		ShippingTotalCents: shipCents,
		GrandTotalCents:    taxable + taxCents + shipCents,
		Status:             StatusActive,
		ExpiresAt:          now.Add(s.TTL),
	}

	reservations, err := s.Store.CreateSession(ctx, sess, &in.ShippingAddress, &in.BillingAddress, items)
	if err != nil {
		return nil, err
	}

	lines := make([]ReservedLine, 0, len(reservations))
	for _, r := range reservations {
		lines = append(lines, ReservedLine{ProductID: r.ProductID, SKU: r.SKU, Qty: r.Quantity})
	}
	s.publish(EventStockReserved, TopicStockReserved, sess.ID, in.TraceID, StockReservedPayload{
		CheckoutID: sess.ID, CartID: c.ID, ExpiresAt: sess.ExpiresAt, Items: lines,
	})

	s.Log.Info("checkout session created",
		zap.String("checkout_id", sess.ID),
		zap.String("cart_id", c.ID),
		zap.Int("lines", len(reservations)),
		zap.Int64("grand_total_cents", sess.GrandTotalCents))
	return sess, nil
}

// GetSession enforces ownership and lazily expires overdue sessions so a
// read never observes a stale active hold. Guest sessions carry no user id;
// their owner proves possession of the originating cart's token.
func (s *Service) GetSession(ctx context.Context, id, userID, cartToken string) (*Session, error) {
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != "" {
		if sess.UserID != userID {
			return nil, ErrAccessDenied
		}
	} else {
		c, _, err := s.Carts.GetWithItems(ctx, sess.CartID)
		if err != nil {
			return nil, err
		}
		if cartToken == "" || c.Token != cartToken {
			return nil, ErrAccessDenied
		}
	}
	if sess.Status == StatusExpired {
		return nil, ErrCheckoutExpired
	}
	if sess.Status == StatusActive && !s.clock().Before(sess.ExpiresAt) {
		if _, err := s.Store.ReleaseAll(ctx, id, ReleaseReasonExpired); err != nil {
			return nil, err
		}
		if err := s.Store.MarkExpired(ctx, id); err != nil && !errors.Is(err, ErrIllegalTransition) {
			return nil, err
		}
		s.publish(EventCheckoutExpired, TopicCheckoutExpired, id, "", CheckoutExpiredPayload{CheckoutID: id})
		return nil, ErrCheckoutExpired
	}
	return sess, nil
}

// ConfirmReservations turns the session's holds into permanent decrements.
func (s *Service) ConfirmReservations(ctx context.Context, checkoutID, actorID string) (int64, error) {
	n, err := s.Store.ConfirmAll(ctx, checkoutID, actorID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info("reservations confirmed",
			zap.String("checkout_id", checkoutID), zap.Int64("lines", n))
	}
	return n, nil
}

// CompleteSession marks the session completed and converts its cart.
func (s *Service) CompleteSession(ctx context.Context, checkoutID, traceID string) error {
	sess, err := s.Store.GetSession(ctx, checkoutID)
	if err != nil {
		return err
	}
	if err := s.Store.MarkCompleted(ctx, checkoutID); err != nil {
		return err
	}
	if err := s.Carts.MarkConverted(ctx, sess.CartID); err != nil && !errors.Is(err, cart.ErrCartNotActive) {
		s.Log.Warn("cart conversion failed after checkout completion",
			zap.String("cart_id", sess.CartID), zap.Error(err))
	}
	s.publish(EventCheckoutCompleted, TopicCheckoutCompleted, checkoutID, traceID, CheckoutCompletedPayload{
		CheckoutID: checkoutID, CartID: sess.CartID,
		GrandTotalCents: sess.GrandTotalCents, Currency: sess.Currency,
	})
	return nil
}

// ReleaseReservations returns held stock to the available pool. Safe to call
// repeatedly; only active holds are touched.
func (s *Service) ReleaseReservations(ctx context.Context, checkoutID, reason string) (int64, error) {
	n, err := s.Store.ReleaseAll(ctx, checkoutID, reason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(EventStockReleased, TopicStockReleased, checkoutID, "", StockReleasedPayload{
			CheckoutID: checkoutID, Reason: reason, Released: n,
		})
	}
	return n, nil
}

// FailSession releases the holds and marks the session failed.
func (s *Service) FailSession(ctx context.Context, checkoutID, reason string) error {
	if _, err := s.ReleaseReservations(ctx, checkoutID, reason); err != nil {
		return err
	}
	return s.Store.MarkFailed(ctx, checkoutID, reason)
}

// SweepExpired releases every overdue hold and expires the owning sessions.
// Run periodically; reads also expire lazily so the sweep is a backstop.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	released, checkoutIDs, err := s.Store.ReleaseExpired(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range checkoutIDs {
		s.publish(EventCheckoutExpired, TopicCheckoutExpired, id, "", CheckoutExpiredPayload{CheckoutID: id})
	}
	if released > 0 {
		s.Log.Info("expired reservations swept",
			zap.Int64("released", released), zap.Int("sessions", len(checkoutIDs)))
	}
	return released, nil
}

func (s *Service) producerFor(topic string) Publisher {
	switch topic {
	case TopicStockReserved:
		return s.ProducerReserved
	case TopicStockReleased:
		return s.ProducerReleased
	case TopicCheckoutCompleted:
		return s.ProducerCompleted
	case TopicCheckoutExpired:
		return s.ProducerExpired
	}
	return nil
}

func (s *Service) publish(eventType, topic, checkoutID, traceID string, payload any) {
	p := s.producerFor(topic)
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.clock().UTC(),
		Producer:      s.ServiceName,
		TraceID:       traceID,
		CorrelationID: checkoutID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(checkoutID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
