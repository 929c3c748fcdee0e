package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krisa786/glob-mart-sub001/internal/cart"
	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
	"github.com/Krisa786/glob-mart-sub001/internal/postgres/pgtest"
)

// seedStock inserts a product and books its opening quantity through the
// ledger, the same way production stock arrives.
func seedStock(t *testing.T, pool *pgxpool.Pool, qty int64) (productID, sku string) {
	t.Helper()
	ctx := context.Background()
	productID = uuid.NewString()
	sku = "SKU-" + productID[:8]
	_, err := pool.Exec(ctx,
		`INSERT INTO products(id, sku, name, price_cents) VALUES ($1,$2,'Integration Widget',1999)`,
		productID, sku)
	require.NoError(t, err)

	inv := &inventory.PGStore{DB: pool}
	_, err = inv.ApplyDelta(ctx, productID, qty, inventory.ReasonInitial, "seed", "test")
	require.NoError(t, err)
	return productID, sku
}

func seedUserCart(t *testing.T, pool *pgxpool.Pool, userID string) string {
	t.Helper()
	cartID := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO carts(id, user_id, currency) VALUES ($1,$2,'USD')`, cartID, userID)
	require.NoError(t, err)
	return cartID
}

func pgSession(cartID, userID string, ttl time.Duration) *Session {
	return &Session{
		ID:             uuid.NewString(),
		CartID:         cartID,
		UserID:         userID,
		ShippingMethod: "standard",
		Currency:       "USD",
		Status:         StatusActive,
		ExpiresAt:      time.Now().Add(ttl),
	}
}

func pgAddr() *Address {
	return &Address{
		Type: AddressShipping, Line1: "1 Main St", City: "Springfield",
		PostalCode: "12345", Country: "US",
	}
}

func pgItem(productID, sku string, qty int) cart.Item {
	return cart.Item{ID: uuid.NewString(), ProductID: productID, SKU: sku, Qty: qty, UnitPriceCents: 1999}
}

func activeHeld(t *testing.T, pool *pgxpool.Pool, productID string) int64 {
	t.Helper()
	var held int64
	require.NoError(t, pool.QueryRow(context.Background(), `
		SELECT COALESCE(SUM(quantity),0) FROM inventory_reservations
		WHERE product_id=$1 AND status='active' AND expires_at > now()`, productID,
	).Scan(&held))
	return held
}

func ledgerSum(t *testing.T, pool *pgxpool.Pool, productID string) int64 {
	t.Helper()
	var sum int64
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(delta),0) FROM stock_ledger WHERE product_id=$1`, productID,
	).Scan(&sum))
	return sum
}

func onHand(t *testing.T, pool *pgxpool.Pool, productID string) int64 {
	t.Helper()
	var qty int64
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT quantity FROM inventory_records WHERE product_id=$1`, productID,
	).Scan(&qty))
	return qty
}

func TestPGCreateSessionConcurrentHolds(t *testing.T) {
	pool := pgtest.SetupDB(t)
	store := &PGStore{DB: pool}
	productID, sku := seedStock(t, pool, 3)

	cartA := seedUserCart(t, pool, "user-a")
	cartB := seedUserCart(t, pool, "user-b")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, c := range []struct{ cartID, userID string }{
		{cartA, "user-a"},
		{cartB, "user-b"},
	} {
		wg.Add(1)
		go func(i int, cartID, userID string) {
			defer wg.Done()
			sess := pgSession(cartID, userID, 15*time.Minute)
			_, errs[i] = store.CreateSession(context.Background(), sess, pgAddr(), pgAddr(),
				[]cart.Item{pgItem(productID, sku, 3)})
		}(i, c.cartID, c.userID)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			var ise *inventory.InsufficientStockError
			require.ErrorAs(t, err, &ise)
			assert.Equal(t, sku, ise.SKU)
		}
	}
	assert.Equal(t, 1, ok, "exactly one competing checkout wins the stock")
	assert.Equal(t, int64(3), activeHeld(t, pool, productID))
	assert.Equal(t, int64(3), onHand(t, pool, productID), "holds never touch on-hand stock")
}

func TestPGCreateSessionAllOrNothing(t *testing.T) {
	pool := pgtest.SetupDB(t)
	store := &PGStore{DB: pool}
	plentyID, plentySKU := seedStock(t, pool, 5)
	scarceID, scarceSKU := seedStock(t, pool, 1)

	cartID := seedUserCart(t, pool, "user-1")
	sess := pgSession(cartID, "user-1", 15*time.Minute)

	_, err := store.CreateSession(context.Background(), sess, pgAddr(), pgAddr(), []cart.Item{
		pgItem(plentyID, plentySKU, 2),
		pgItem(scarceID, scarceSKU, 2),
	})
	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, scarceSKU, ise.SKU)
	assert.Equal(t, 2, ise.Requested)
	assert.Equal(t, 1, ise.Available)

	// the whole transaction rolled back: no session row, no partial hold
	_, err = store.GetSession(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
	assert.Zero(t, activeHeld(t, pool, plentyID))
	assert.Zero(t, activeHeld(t, pool, scarceID))
}

func TestPGConfirmAllWritesLedger(t *testing.T) {
	pool := pgtest.SetupDB(t)
	store := &PGStore{DB: pool}
	productID, sku := seedStock(t, pool, 5)

	cartID := seedUserCart(t, pool, "user-1")
	sess := pgSession(cartID, "user-1", 15*time.Minute)
	_, err := store.CreateSession(context.Background(), sess, pgAddr(), pgAddr(),
		[]cart.Item{pgItem(productID, sku, 2)})
	require.NoError(t, err)

	n, err := store.ConfirmAll(context.Background(), sess.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, int64(3), onHand(t, pool, productID))
	assert.Equal(t, onHand(t, pool, productID), ledgerSum(t, pool, productID),
		"quantity must equal the sum of ledger deltas")

	var holdDelta int64
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT delta FROM stock_ledger WHERE product_id=$1 AND reason='order_hold'`, productID,
	).Scan(&holdDelta))
	assert.Equal(t, int64(-2), holdDelta)

	// confirming again must not decrement twice
	n, err = store.ConfirmAll(context.Background(), sess.ID, "worker-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(3), onHand(t, pool, productID))
}

func TestPGReleaseAllRestoresAvailability(t *testing.T) {
	pool := pgtest.SetupDB(t)
	store := &PGStore{DB: pool}
	productID, sku := seedStock(t, pool, 3)

	cartA := seedUserCart(t, pool, "user-a")
	cartB := seedUserCart(t, pool, "user-b")

	sessA := pgSession(cartA, "user-a", 15*time.Minute)
	_, err := store.CreateSession(context.Background(), sessA, pgAddr(), pgAddr(),
		[]cart.Item{pgItem(productID, sku, 3)})
	require.NoError(t, err)

	sessB := pgSession(cartB, "user-b", 15*time.Minute)
	_, err = store.CreateSession(context.Background(), sessB, pgAddr(), pgAddr(),
		[]cart.Item{pgItem(productID, sku, 3)})
	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)

	n, err := store.ReleaseAll(context.Background(), sessA.ID, "payment_failed")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, activeHeld(t, pool, productID))
	assert.Equal(t, int64(3), onHand(t, pool, productID))

	// the freed stock is available to the next attempt
	sessB = pgSession(cartB, "user-b", 15*time.Minute)
	_, err = store.CreateSession(context.Background(), sessB, pgAddr(), pgAddr(),
		[]cart.Item{pgItem(productID, sku, 3)})
	require.NoError(t, err)
}

func TestPGReleaseExpiredSweeps(t *testing.T) {
	pool := pgtest.SetupDB(t)
	store := &PGStore{DB: pool}
	productID, sku := seedStock(t, pool, 4)

	cartID := seedUserCart(t, pool, "user-1")
	overdue := pgSession(cartID, "user-1", -time.Minute)
	_, err := store.CreateSession(context.Background(), overdue, pgAddr(), pgAddr(),
		[]cart.Item{pgItem(productID, sku, 2)})
	require.NoError(t, err)

	released, ids, err := store.ReleaseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)
	assert.Equal(t, []string{overdue.ID}, ids)

	got, err := store.GetSession(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.False(t, got.StockReserved)
	assert.Zero(t, activeHeld(t, pool, productID))

	// a second sweep finds nothing
	released, ids, err = store.ReleaseExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, released)
	assert.Empty(t, ids)
}
