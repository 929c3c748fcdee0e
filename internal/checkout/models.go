package checkout

import (
	"errors"
	"time"
)

var (
	ErrCheckoutNotFound    = errors.New("checkout session not found")
	ErrCheckoutExpired     = errors.New("checkout session expired")
	ErrAccessDenied        = errors.New("checkout session owned by another user")
	ErrEmptyCart           = errors.New("cart is empty, nothing to check out")
	ErrIllegalTransition   = errors.New("illegal transition of checkout status")
	ErrInvalidAddress      = errors.New("address is missing required fields")
	ErrInvalidPostalCode   = errors.New("postal code does not match destination format")
	ErrShippingUnavailable = errors.New("shipping method unavailable for destination")
)

type Session struct {
	ID                 string
	CartID             string
	UserID             string // empty for guest checkout
	ShippingAddressID  string
	BillingAddressID   string
	ShippingMethod     string
	Currency           string
	TaxTotalCents      int64
	ShippingTotalCents int64
	GrandTotalCents    int64
	StockReserved      bool
	Status             Status
	ExpiresAt          time.Time
	CompletedAt        *time.Time
	FailedAt           *time.Time
	FailureReason      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reservation is a time-bound hold against available stock, one per cart
// line per checkout attempt.
type Reservation struct {
	ID            string
	CheckoutID    string
	CartItemID    string
	ProductID     string
	SKU           string
	Quantity      int
	Status        ReservationStatus
	ExpiresAt     time.Time
	ConfirmedAt   *time.Time
	ReleasedAt    *time.Time
	ReleaseReason string
	CreatedAt     time.Time
}

// Expired reports whether an active reservation has outlived its hold. Used
// as a read-time safety net between sweep runs.
func (r *Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationActive && !now.Before(r.ExpiresAt)
}

const (
	AddressShipping = "shipping"
	AddressBilling  = "billing"
)

// Address rows are immutable once referenced by a session; edits create a
// new row.
type Address struct {
	ID         string
	Type       string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string // ISO-2
	CreatedAt  time.Time
}
