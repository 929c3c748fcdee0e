package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventStockReserved     = "StockReserved"
	EventStockReleased     = "StockReleased"
	EventCheckoutCompleted = "CheckoutCompleted"
	EventCheckoutExpired   = "CheckoutExpired"
	EventOrderPlaced       = "OrderPlaced"
	EventPaymentFailed     = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually checkout_id
	Payload       json.RawMessage `json:"payload"`                  // event-specific payload
}

// ---- payload types per event ----

type ReservedLine struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Qty       int    `json:"qty"`
}

type StockReservedPayload struct {
	CheckoutID string         `json:"checkout_id"`
	CartID     string         `json:"cart_id"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Items      []ReservedLine `json:"items"`
}

type StockReleasedPayload struct {
	CheckoutID string `json:"checkout_id"`
	Reason     string `json:"reason"` // e.g. "expired", "payment_failed"
	Released   int64  `json:"released"`
}

type CheckoutCompletedPayload struct {
	CheckoutID      string `json:"checkout_id"`
	CartID          string `json:"cart_id"`
	GrandTotalCents int64  `json:"grand_total_cents"`
	Currency        string `json:"currency"`
}

type CheckoutExpiredPayload struct {
	CheckoutID string `json:"checkout_id"`
}

type OrderPlacedPayload struct {
	CheckoutID string `json:"checkout_id"`
	OrderID    string `json:"order_id"`
}

type PaymentFailedPayload struct {
	CheckoutID string `json:"checkout_id"`
	Reason     string `json:"reason"` // e.g. INSUFFICIENT_FUNDS
}
