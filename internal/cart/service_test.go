package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Krisa786/glob-mart-sub001/internal/catalog"
	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
)

// memStore implements Store in memory, mirroring the transactional
// recompute-on-mutation behavior of the Postgres store.
type memStore struct {
	carts map[string]*Cart
	items map[string]map[string]*Item // cart id -> sku -> item
}

func newMemStore() *memStore {
	return &memStore{carts: map[string]*Cart{}, items: map[string]map[string]*Item{}}
}

func (m *memStore) Create(_ context.Context, c *Cart) error {
	cp := *c
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.carts[c.ID] = &cp
	m.items[c.ID] = map[string]*Item{}
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) FindActive(_ context.Context, ident Identity) (*Cart, error) {
	for _, c := range m.carts {
		if c.Status != StatusActive {
			continue
		}
		if ident.Owns(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCartNotFound
}

func (m *memStore) GetWithItems(ctx context.Context, id string) (*Cart, []Item, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var items []Item
	for _, it := range m.items[id] {
		items = append(items, *it)
	}
	return c, items, nil
}

func (m *memStore) GetItem(_ context.Context, cartID, sku string) (*Item, error) {
	it, ok := m.items[cartID][sku]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) UpsertItem(_ context.Context, it *Item) error {
	cp := *it
	m.items[it.CartID][it.SKU] = &cp
	m.recompute(it.CartID)
	return nil
}

func (m *memStore) RemoveItem(_ context.Context, cartID, sku string) error {
	if _, ok := m.items[cartID][sku]; !ok {
		return ErrItemNotFound
	}
	delete(m.items[cartID], sku)
	m.recompute(cartID)
	return nil
}

func (m *memStore) RewriteItems(_ context.Context, cartID string, items []Item) error {
	for i := range items {
		cp := items[i]
		m.items[cartID][cp.SKU] = &cp
	}
	m.recompute(cartID)
	return nil
}

func (m *memStore) SetStatus(_ context.Context, cartID string, from, to Status) error {
	c, ok := m.carts[cartID]
	if !ok {
		return ErrCartNotFound
	}
	if c.Status != from {
		return ErrCartNotActive
	}
	c.Status = to
	return nil
}

func (m *memStore) MarkAbandoned(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, c := range m.carts {
		if c.Status == StatusActive && c.UpdatedAt.Before(cutoff) {
			c.Status = StatusAbandoned
			n++
		}
	}
	return n, nil
}

func (m *memStore) recompute(cartID string) {
	c := m.carts[cartID]
	var items []Item
	for _, it := range m.items[cartID] {
		items = append(items, *it)
	}
	RecomputeTotals(c, items)
	c.UpdatedAt = time.Now()
}

type fakeCatalog struct{ bySKU map[string]*catalog.Product }

func (f *fakeCatalog) GetBySKU(_ context.Context, sku string) (*catalog.Product, error) {
	p, ok := f.bySKU[sku]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	for _, p := range f.bySKU {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

type fakeInventory struct{ qty map[string]int64 }

func (f *fakeInventory) Get(_ context.Context, productID string) (*inventory.Record, error) {
	q, ok := f.qty[productID]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &inventory.Record{ProductID: productID, Quantity: q}, nil
}

func newTestService() (*Service, *memStore, *fakeCatalog, *fakeInventory) {
	store := newMemStore()
	cat := &fakeCatalog{bySKU: map[string]*catalog.Product{
		"TOWEL-001": {ID: "p-towel", SKU: "TOWEL-001", PriceCents: 2599, Currency: "USD", Status: catalog.StatusPublished},
		"SOAP-002":  {ID: "p-soap", SKU: "SOAP-002", PriceCents: 999, Currency: "USD", Status: catalog.StatusPublished},
		"DRAFT-003": {ID: "p-draft", SKU: "DRAFT-003", PriceCents: 100, Currency: "USD", Status: "draft"},
	}}
	inv := &fakeInventory{qty: map[string]int64{"p-towel": 10, "p-soap": 4}}
	svc := &Service{Store: store, Catalog: cat, Inventory: inv, Log: zap.NewNop()}
	return svc, store, cat, inv
}

func TestCreateOrGetIsIdempotentPerIdentity(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	c1, err := svc.CreateOrGet(ctx, Identity{UserID: "u1"}, "USD")
	require.NoError(t, err)
	c2, err := svc.CreateOrGet(ctx, Identity{UserID: "u1"}, "USD")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)

	guest, err := svc.CreateOrGet(ctx, Identity{Token: "t1"}, "USD")
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, guest.ID, "user cart and token cart are distinct rows")
}

func TestCreateOrGetRejectsBadIdentity(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.CreateOrGet(context.Background(), Identity{}, "USD")
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	_, err = svc.CreateOrGet(context.Background(), Identity{UserID: "u", Token: "t"}, "USD")
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestAddItemMergesExistingSKU(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	ident := Identity{UserID: "u1"}
	c, _ := svc.CreateOrGet(ctx, ident, "USD")

	it, err := svc.AddItem(ctx, c.ID, ident, "TOWEL-001", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Qty)
	assert.Equal(t, int64(5198), it.LineSubtotalCents)

	it, err = svc.AddItem(ctx, c.ID, ident, "TOWEL-001", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, it.Qty, "same sku merges instead of duplicating")
	assert.Equal(t, int64(7797), it.LineSubtotalCents)

	assert.Len(t, store.items[c.ID], 1)
	assert.Equal(t, int64(7797), store.carts[c.ID].SubtotalCents)
}

func TestAddItemStockAndCatalogChecks(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	ident := Identity{UserID: "u1"}
	c, _ := svc.CreateOrGet(ctx, ident, "USD")

	_, err := svc.AddItem(ctx, c.ID, ident, "NOPE-000", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = svc.AddItem(ctx, c.ID, ident, "DRAFT-003", 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = svc.AddItem(ctx, c.ID, ident, "SOAP-002", 5)
	var ins *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, "SOAP-002", ins.SKU)
	assert.Equal(t, 4, ins.Available)

	// combined quantity is what gets validated
	_, err = svc.AddItem(ctx, c.ID, ident, "SOAP-002", 3)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, ident, "SOAP-002", 2)
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, 5, ins.Requested)
}

func TestAddItemOwnership(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	c, _ := svc.CreateOrGet(ctx, Identity{UserID: "u1"}, "USD")

	_, err := svc.AddItem(ctx, c.ID, Identity{UserID: "u2"}, "TOWEL-001", 1)
	assert.ErrorIs(t, err, ErrCartNotFound, "foreign cart reads as not found")
}

func TestUpdateItemZeroRemoves(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	ident := Identity{UserID: "u1"}
	c, _ := svc.CreateOrGet(ctx, ident, "USD")
	_, err := svc.AddItem(ctx, c.ID, ident, "TOWEL-001", 2)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, c.ID, ident, "TOWEL-001", 0)
	require.NoError(t, err)
	assert.Empty(t, store.items[c.ID])
	assert.Zero(t, store.carts[c.ID].SubtotalCents)
}

func TestUpdateItemValidatesIncreaseOnly(t *testing.T) {
	svc, _, _, inv := newTestService()
	ctx := context.Background()
	ident := Identity{UserID: "u1"}
	c, _ := svc.CreateOrGet(ctx, ident, "USD")
	_, err := svc.AddItem(ctx, c.ID, ident, "SOAP-002", 4)
	require.NoError(t, err)

	// stock drops under what is already in the cart
	inv.qty["p-soap"] = 1

	_, err = svc.UpdateItem(ctx, c.ID, ident, "SOAP-002", 2)
	require.NoError(t, err, "decrease does not re-validate stock")

	_, err = svc.UpdateItem(ctx, c.ID, ident, "SOAP-002", 3)
	var ins *inventory.InsufficientStockError
	assert.ErrorAs(t, err, &ins)
}

func TestRepriceRewritesSnapshots(t *testing.T) {
	svc, store, cat, _ := newTestService()
	ctx := context.Background()
	ident := Identity{UserID: "u1"}
	c, _ := svc.CreateOrGet(ctx, ident, "USD")
	_, err := svc.AddItem(ctx, c.ID, ident, "TOWEL-001", 2)
	require.NoError(t, err)

	cat.bySKU["TOWEL-001"].PriceCents = 3000
	require.NoError(t, svc.Reprice(ctx, c.ID, ident))

	it := store.items[c.ID]["TOWEL-001"]
	assert.Equal(t, int64(3000), it.UnitPriceCents)
	assert.Equal(t, int64(6000), it.LineSubtotalCents)
	assert.Equal(t, int64(6000), store.carts[c.ID].SubtotalCents)
}

func TestMergeGuestCartIntoUserCart(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	guestIdent := Identity{Token: "t1"}
	guest, _ := svc.CreateOrGet(ctx, guestIdent, "USD")
	_, err := svc.AddItem(ctx, guest.ID, guestIdent, "TOWEL-001", 1)
	require.NoError(t, err)

	userIdent := Identity{UserID: "u1"}
	user, _ := svc.CreateOrGet(ctx, userIdent, "USD")
	_, err = svc.AddItem(ctx, user.ID, userIdent, "SOAP-002", 1)
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, "t1", "u1", "USD")
	require.NoError(t, err)
	assert.Equal(t, user.ID, merged.ID)
	assert.Len(t, store.items[merged.ID], 2)
	assert.Equal(t, int64(2599+999), merged.SubtotalCents)
	assert.Equal(t, StatusAbandoned, store.carts[guest.ID].Status, "guest cart is discarded")
}

func TestMergeSumsOverlappingSKUs(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	guestIdent := Identity{Token: "t1"}
	guest, _ := svc.CreateOrGet(ctx, guestIdent, "USD")
	_, err := svc.AddItem(ctx, guest.ID, guestIdent, "TOWEL-001", 2)
	require.NoError(t, err)

	userIdent := Identity{UserID: "u1"}
	user, _ := svc.CreateOrGet(ctx, userIdent, "USD")
	_, err = svc.AddItem(ctx, user.ID, userIdent, "TOWEL-001", 1)
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, "t1", "u1", "USD")
	require.NoError(t, err)
	assert.Len(t, store.items[merged.ID], 1)
	assert.Equal(t, 3, store.items[merged.ID]["TOWEL-001"].Qty)
}

func TestMergeWithoutGuestCartReturnsUserCart(t *testing.T) {
	svc, _, _, _ := newTestService()
	merged, err := svc.Merge(context.Background(), "no-such-token", "u1", "USD")
	require.NoError(t, err)
	assert.Equal(t, "u1", merged.UserID)
}

func TestMarkAbandonedSweepsIdleCarts(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	c, _ := svc.CreateOrGet(ctx, Identity{UserID: "u1"}, "USD")
	store.carts[c.ID].UpdatedAt = time.Now().Add(-61 * 24 * time.Hour)
	fresh, _ := svc.CreateOrGet(ctx, Identity{UserID: "u2"}, "USD")

	n, err := svc.MarkAbandoned(ctx, 60*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, StatusAbandoned, store.carts[c.ID].Status)
	assert.Equal(t, StatusActive, store.carts[fresh.ID].Status)
}

func TestConvertedCartRejectsMutation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	ident := Identity{UserID: "u1"}
	c, _ := svc.CreateOrGet(ctx, ident, "USD")
	_, err := svc.AddItem(ctx, c.ID, ident, "TOWEL-001", 1)
	require.NoError(t, err)

	require.NoError(t, svc.MarkConverted(ctx, c.ID))
	_, err = svc.AddItem(ctx, c.ID, ident, "TOWEL-001", 1)
	assert.ErrorIs(t, err, ErrCartNotActive)
}
