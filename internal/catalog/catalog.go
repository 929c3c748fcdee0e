// Package catalog is the read-side view of the product catalog service.
// The reservation core never mutates products; it only needs identity,
// price and publication state.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("product not found")

const StatusPublished = "published"

type Product struct {
	ID         string
	SKU        string
	Name       string
	PriceCents int64
	Currency   string
	Status     string
	CategoryID string
	DeletedAt  *time.Time
}

func (p *Product) Published() bool {
	return p.Status == StatusPublished && p.DeletedAt == nil
}

type Catalog interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
}
