package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductDeleted  = errors.New("product is soft-deleted")
	ErrNegativeStock   = errors.New("delta would drive quantity below zero")
	ErrUnknownReason   = errors.New("unknown ledger reason")
	ErrReservedReason  = errors.New("reason is written only by the checkout flow")
)

// InsufficientStockError identifies the offending sku so callers can prompt
// a quantity adjustment instead of aborting the whole cart.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku=%s: requested %d, available %d",
		e.SKU, e.Requested, e.Available)
}

// Reason is the closed set of causes a ledger entry may carry.
type Reason string

const (
	ReasonInitial      Reason = "initial"
	ReasonManualAdjust Reason = "manual_adjust"
	ReasonOrderHold    Reason = "order_hold"
	ReasonOrderRelease Reason = "order_release"
	ReasonReturn       Reason = "return"
	ReasonRecount      Reason = "recount"
)

var validReasons = map[Reason]bool{
	ReasonInitial:      true,
	ReasonManualAdjust: true,
	ReasonOrderHold:    true,
	ReasonOrderRelease: true,
	ReasonReturn:       true,
	ReasonRecount:      true,
}

func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !validReasons[r] {
		return "", fmt.Errorf("%w: %q", ErrUnknownReason, s)
	}
	return r, nil
}

// Manual reports whether operators may book the reason directly. Hold and
// release entries are created only by confirming or releasing reservations,
// so accepting them here would let an adjustment forge checkout traffic.
func (r Reason) Manual() bool {
	switch r {
	case ReasonOrderHold, ReasonOrderRelease:
		return false
	}
	return true
}

// Record is the current on-hand state for one product. It is mutated only
// through ledger entries, so quantity always equals the sum of deltas.
type Record struct {
	ProductID         string
	Quantity          int64
	LowStockThreshold int64
	UpdatedAt         time.Time
}

func (r *Record) InStock() bool { return r.Quantity > 0 }

func (r *Record) LowStock() bool {
	return r.Quantity > 0 && r.Quantity <= r.LowStockThreshold
}

// LedgerEntry is one immutable stock delta. Never updated or deleted.
type LedgerEntry struct {
	ID        string
	ProductID string
	Delta     int64
	Reason    Reason
	Note      string
	CreatedBy string
	CreatedAt time.Time
}

// StockStatus is the read-model served to callers (and cached in Redis).
type StockStatus struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	InStock   bool   `json:"in_stock"`
	LowStock  bool   `json:"low_stock"`
}

func StatusOf(r *Record) StockStatus {
	return StockStatus{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		InStock:   r.InStock(),
		LowStock:  r.LowStock(),
	}
}
