package cart

import (
	"errors"
	"time"
)

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrItemNotFound       = errors.New("cart item not found")
	ErrCartNotActive      = errors.New("cart is not active")
	ErrInvalidIdentity    = errors.New("exactly one of user id or cart token must be set")
	ErrInvalidQuantity    = errors.New("quantity must be >= 0")
	ErrProductUnavailable = errors.New("product is not published")
	ErrCurrencyMismatch   = errors.New("product currency does not match cart currency")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusConverted Status = "converted"
	StatusAbandoned Status = "abandoned"
)

// Identity names the cart owner: a registered user or an anonymous guest
// token. Exactly one side is set.
type Identity struct {
	UserID string
	Token  string
}

func (i Identity) Valid() bool { return (i.UserID == "") != (i.Token == "") }

// Owns reports whether this identity owns the given cart.
func (i Identity) Owns(c *Cart) bool {
	if i.UserID != "" {
		return c.UserID == i.UserID
	}
	return i.Token != "" && c.Token == i.Token
}

type Cart struct {
	ID                 string
	UserID             string // empty for guest carts
	Token              string // empty for user carts
	Currency           string
	SubtotalCents      int64
	DiscountTotalCents int64
	TaxTotalCents      int64
	ShippingTotalCents int64
	GrandTotalCents    int64
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Item carries a unit-price snapshot taken at add-time; reprice rewrites it.
type Item struct {
	ID                string
	CartID            string
	ProductID         string
	SKU               string
	Qty               int
	UnitPriceCents    int64
	LineSubtotalCents int64
	LineDiscountCents int64
	LineTaxCents      int64
	LineTotalCents    int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
