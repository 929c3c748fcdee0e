package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Krisa786/glob-mart-sub001/internal/catalog"
	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
)

// Inventory is the slice of the inventory store the cart needs: current
// on-hand quantity. Cart validation ignores reservations; holds only matter
// once a checkout starts.
type Inventory interface {
	Get(ctx context.Context, productID string) (*inventory.Record, error)
}

type Service struct {
	Store     Store
	Catalog   catalog.Catalog
	Inventory Inventory
	Log       *zap.Logger
}

// CreateOrGet finds the identity's active cart or creates one. A user cart
// and a guest-token cart are distinct rows until merged.
func (s *Service) CreateOrGet(ctx context.Context, ident Identity, currency string) (*Cart, error) {
	if !ident.Valid() {
		return nil, ErrInvalidIdentity
	}

	c, err := s.Store.FindActive(ctx, ident)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	c = &Cart{
		ID:       uuid.NewString(),
		UserID:   ident.UserID,
		Token:    ident.Token,
		Currency: currency,
		Status:   StatusActive,
	}
	if err := s.Store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.Log.Info("cart created", zap.String("cart_id", c.ID))
	return c, nil
}

// Get loads an active cart with items, enforcing ownership. A cart owned by
// someone else is reported as not found, not as forbidden.
func (s *Service) Get(ctx context.Context, cartID string, ident Identity) (*Cart, []Item, error) {
	c, items, err := s.Store.GetWithItems(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	if !ident.Owns(c) {
		return nil, nil, ErrCartNotFound
	}
	return c, items, nil
}

// AddItem validates the product and stock, then merges into an existing
// (cart_id, sku) line or creates one.
func (s *Service) AddItem(ctx context.Context, cartID string, ident Identity, sku string, qty int) (*Item, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	c, err := s.activeOwned(ctx, cartID, ident)
	if err != nil {
		return nil, err
	}

	p, err := s.Catalog.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if !p.Published() {
		return nil, ErrProductUnavailable
	}
	if p.Currency != c.Currency {
		return nil, ErrCurrencyMismatch
	}

	it, err := s.Store.GetItem(ctx, cartID, sku)
	if errors.Is(err, ErrItemNotFound) {
		it = &Item{
			ID:             uuid.NewString(),
			CartID:         cartID,
			ProductID:      p.ID,
			SKU:            p.SKU,
			UnitPriceCents: p.PriceCents,
		}
	} else if err != nil {
		return nil, err
	}

	combined := it.Qty + qty
	if err := s.checkStock(ctx, p.ID, p.SKU, combined); err != nil {
		return nil, err
	}

	it.Qty = combined
	PriceLine(it)
	if err := s.Store.UpsertItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateItem sets an absolute quantity; zero removes the line. Stock is
// re-validated only on increase.
func (s *Service) UpdateItem(ctx context.Context, cartID string, ident Identity, sku string, qty int) (*Item, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.activeOwned(ctx, cartID, ident); err != nil {
		return nil, err
	}

	it, err := s.Store.GetItem(ctx, cartID, sku)
	if err != nil {
		return nil, err
	}

	if qty == 0 {
		return nil, s.Store.RemoveItem(ctx, cartID, sku)
	}

	if qty > it.Qty {
		if err := s.checkStock(ctx, it.ProductID, it.SKU, qty); err != nil {
			return nil, err
		}
	}

	it.Qty = qty
	PriceLine(it)
	if err := s.Store.UpsertItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) RemoveItem(ctx context.Context, cartID string, ident Identity, sku string) error {
	if _, err := s.activeOwned(ctx, cartID, ident); err != nil {
		return err
	}
	return s.Store.RemoveItem(ctx, cartID, sku)
}

// Reprice rewrites every line's unit price from the current catalog price,
// guarding against stale snapshots before checkout.
func (s *Service) Reprice(ctx context.Context, cartID string, ident Identity) error {
	if _, err := s.activeOwned(ctx, cartID, ident); err != nil {
		return err
	}

	_, items, err := s.Store.GetWithItems(ctx, cartID)
	if err != nil {
		return err
	}
	for i := range items {
		p, err := s.Catalog.GetByID(ctx, items[i].ProductID)
		if err != nil {
			return err
		}
		items[i].UnitPriceCents = p.PriceCents
		PriceLine(&items[i])
	}
	return s.Store.RewriteItems(ctx, cartID, items)
}

// Merge folds a guest cart into the user's cart, summing quantities for
// overlapping skus, then discards the guest cart. Stock is enforced later,
// at reservation time.
func (s *Service) Merge(ctx context.Context, guestToken, userID, currency string) (*Cart, error) {
	if guestToken == "" || userID == "" {
		return nil, ErrInvalidIdentity
	}

	userCart, err := s.CreateOrGet(ctx, Identity{UserID: userID}, currency)
	if err != nil {
		return nil, err
	}

	guest, err := s.Store.FindActive(ctx, Identity{Token: guestToken})
	if errors.Is(err, ErrCartNotFound) {
		return userCart, nil
	}
	if err != nil {
		return nil, err
	}

	_, guestItems, err := s.Store.GetWithItems(ctx, guest.ID)
	if err != nil {
		return nil, err
	}

	for _, gi := range guestItems {
		it, err := s.Store.GetItem(ctx, userCart.ID, gi.SKU)
		if errors.Is(err, ErrItemNotFound) {
			it = &Item{
				ID:             uuid.NewString(),
				CartID:         userCart.ID,
				ProductID:      gi.ProductID,
				SKU:            gi.SKU,
				UnitPriceCents: gi.UnitPriceCents,
			}
		} else if err != nil {
			return nil, err
		}
		it.Qty += gi.Qty
		PriceLine(it)
		if err := s.Store.UpsertItem(ctx, it); err != nil {
			return nil, err
		}
	}

	if err := s.Store.SetStatus(ctx, guest.ID, StatusActive, StatusAbandoned); err != nil {
		return nil, err
	}
	s.Log.Info("guest cart merged",
		zap.String("guest_cart_id", guest.ID),
		zap.String("user_cart_id", userCart.ID),
	)
	return s.Store.Get(ctx, userCart.ID)
}

// GetWithItems loads a cart and its lines without an ownership check, for
// trusted internal callers (checkout enforces its own ownership).
func (s *Service) GetWithItems(ctx context.Context, cartID string) (*Cart, []Item, error) {
	return s.Store.GetWithItems(ctx, cartID)
}

// MarkConverted finalizes a cart after its order is placed.
func (s *Service) MarkConverted(ctx context.Context, cartID string) error {
	return s.Store.SetStatus(ctx, cartID, StatusActive, StatusConverted)
}

// MarkAbandoned sweeps active carts idle for longer than olderThan.
func (s *Service) MarkAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.Store.MarkAbandoned(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info("carts abandoned", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) activeOwned(ctx context.Context, cartID string, ident Identity) (*Cart, error) {
	if !ident.Valid() {
		return nil, ErrInvalidIdentity
	}
	c, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !ident.Owns(c) {
		return nil, ErrCartNotFound
	}
	if c.Status != StatusActive {
		return nil, ErrCartNotActive
	}
	return c, nil
}

func (s *Service) checkStock(ctx context.Context, productID, sku string, want int) error {
	rec, err := s.Inventory.Get(ctx, productID)
	if errors.Is(err, inventory.ErrProductNotFound) {
		rec = &inventory.Record{ProductID: productID}
	} else if err != nil {
		return err
	}
	if int64(want) > rec.Quantity {
		return &inventory.InsufficientStockError{
			SKU:       sku,
			Requested: want,
			Available: int(rec.Quantity),
		}
	}
	return nil
}
