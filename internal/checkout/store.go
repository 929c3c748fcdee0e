package checkout

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Krisa786/glob-mart-sub001/internal/cart"
	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
)

type Store interface {
	// CreateSession persists the addresses, the session and one reservation
	// per cart line in a single transaction. All-or-nothing: any line short
	// on stock rolls the whole attempt back.
	CreateSession(ctx context.Context, sess *Session, ship, bill *Address, items []cart.Item) ([]Reservation, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	Reservations(ctx context.Context, checkoutID string) ([]Reservation, error)

	// ConfirmAll flips the session's active reservations to confirmed and
	// writes the matching order_hold ledger entries. Returns how many lines
	// were confirmed; zero means they were already confirmed or released.
	ConfirmAll(ctx context.Context, checkoutID, actorID string) (int64, error)
	// ReleaseAll flips active reservations to released. Idempotent.
	ReleaseAll(ctx context.Context, checkoutID, reason string) (int64, error)
	// ReleaseExpired releases every overdue active reservation and expires
	// the sessions they belong to.
	ReleaseExpired(ctx context.Context) (int64, []string, error)

	MarkCompleted(ctx context.Context, checkoutID string) error
	MarkFailed(ctx context.Context, checkoutID, reason string) error
	MarkExpired(ctx context.Context, checkoutID string) error
}

type PGStore struct{ DB *pgxpool.Pool }

const sessionCols = `id, cart_id, COALESCE(user_id,''), shipping_address_id, billing_address_id,
	shipping_method, currency, tax_total_cents, shipping_total_cents, grand_total_cents,
	stock_reserved, status, expires_at, completed_at, failed_at, COALESCE(failure_reason,''),
	created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var status string
	err := row.Scan(&s.ID, &s.CartID, &s.UserID, &s.ShippingAddressID, &s.BillingAddressID,
		&s.ShippingMethod, &s.Currency, &s.TaxTotalCents, &s.ShippingTotalCents, &s.GrandTotalCents,
		&s.StockReserved, &status, &s.ExpiresAt, &s.CompletedAt, &s.FailedAt, &s.FailureReason,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

func (s *PGStore) CreateSession(ctx context.Context, sess *Session, ship, bill *Address, items []cart.Item) ([]Reservation, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, a := range []*Address{ship, bill} {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO addresses(id, type, line1, line2, city, region, postal_code, country)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, a.Type, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country,
		); err != nil {
			return nil, err
		}
	}
	sess.ShippingAddressID = ship.ID
	sess.BillingAddressID = bill.ID

	var userID *string
	if sess.UserID != "" {
		userID = &sess.UserID
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO checkout_sessions(id, cart_id, user_id, shipping_address_id, billing_address_id,
			shipping_method, currency, tax_total_cents, shipping_total_cents, grand_total_cents,
			status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'active',$11)
		RETURNING created_at, updated_at`,
		sess.ID, sess.CartID, userID, sess.ShippingAddressID, sess.BillingAddressID,
		sess.ShippingMethod, sess.Currency, sess.TaxTotalCents, sess.ShippingTotalCents,
		sess.GrandTotalCents, sess.ExpiresAt,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}

	// Lock products in ascending id order so concurrent checkouts sharing
	// items cannot deadlock.
	sorted := make([]cart.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	out := make([]Reservation, 0, len(sorted))
	for _, it := range sorted {
		if err := inventory.LockProduct(ctx, tx, it.ProductID); err != nil {
			return nil, err
		}

		var onHand int64
		err := tx.QueryRow(ctx,
			`SELECT quantity FROM inventory_records WHERE product_id=$1`, it.ProductID,
		).Scan(&onHand)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		var held int64
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(quantity),0) FROM inventory_reservations
			WHERE product_id=$1 AND status='active' AND expires_at > now()`,
			it.ProductID,
		).Scan(&held); err != nil {
			return nil, err
		}

		available := onHand - held
		if available < int64(it.Qty) {
			return nil, &inventory.InsufficientStockError{
				SKU: it.SKU, Requested: it.Qty, Available: int(available),
			}
		}

		r := Reservation{
			ID:         uuid.NewString(),
			CheckoutID: sess.ID,
			CartItemID: it.ID,
			ProductID:  it.ProductID,
			SKU:        it.SKU,
			Quantity:   it.Qty,
			Status:     ReservationActive,
			ExpiresAt:  sess.ExpiresAt,
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO inventory_reservations(id, checkout_id, cart_item_id, product_id, sku, quantity, status, expires_at)
			VALUES ($1,$2,$3,$4,$5,$6,'active',$7)
			RETURNING created_at`,
			r.ID, r.CheckoutID, r.CartItemID, r.ProductID, r.SKU, r.Quantity, r.ExpiresAt,
		).Scan(&r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE checkout_sessions SET stock_reserved=true, updated_at=now() WHERE id=$1`, sess.ID,
	); err != nil {
		return nil, err
	}
	sess.StockReserved = true
	sess.Status = StatusActive

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) GetSession(ctx context.Context, id string) (*Session, error) {
	return scanSession(s.DB.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM checkout_sessions WHERE id=$1`, id))
}

func (s *PGStore) Reservations(ctx context.Context, checkoutID string) ([]Reservation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, checkout_id, cart_item_id, product_id, sku, quantity, status,
			expires_at, confirmed_at, released_at, COALESCE(release_reason,''), created_at
		FROM inventory_reservations
		WHERE checkout_id=$1
		ORDER BY product_id`, checkoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		var status string
		if err := rows.Scan(&r.ID, &r.CheckoutID, &r.CartItemID, &r.ProductID, &r.SKU,
			&r.Quantity, &status, &r.ExpiresAt, &r.ConfirmedAt, &r.ReleasedAt,
			&r.ReleaseReason, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = ReservationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) ConfirmAll(ctx context.Context, checkoutID, actorID string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	var expiresAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT status, expires_at FROM checkout_sessions WHERE id=$1 FOR UPDATE`, checkoutID,
	).Scan(&status, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrCheckoutNotFound
	}
	if err != nil {
		return 0, err
	}
	if Status(status) == StatusExpired || (Status(status) == StatusActive && !time.Now().Before(expiresAt)) {
		return 0, ErrCheckoutExpired
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, sku, quantity FROM inventory_reservations
		WHERE checkout_id=$1 AND status='active'
		ORDER BY product_id`, checkoutID)
	if err != nil {
		return 0, err
	}
	type line struct {
		productID, sku string
		qty            int64
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.sku, &l.qty); err != nil {
			rows.Close()
			return 0, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, tx.Commit(ctx)
	}

	for _, l := range lines {
		if err := inventory.LockProduct(ctx, tx, l.productID); err != nil {
			return 0, err
		}
		if _, err := inventory.ApplyDeltaTx(ctx, tx, l.productID, -l.qty,
			inventory.ReasonOrderHold, "checkout "+checkoutID, actorID); err != nil {
			return 0, err
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE inventory_reservations
		SET status='confirmed', confirmed_at=now()
		WHERE checkout_id=$1 AND status='active'`, checkoutID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) ReleaseAll(ctx context.Context, checkoutID, reason string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM checkout_sessions WHERE id=$1)`, checkoutID,
	).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrCheckoutNotFound
	}

	tag, err := tx.Exec(ctx, `
		UPDATE inventory_reservations
		SET status='released', released_at=now(), release_reason=$2
		WHERE checkout_id=$1 AND status='active'`, checkoutID, reason)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE checkout_sessions SET stock_reserved=false, updated_at=now() WHERE id=$1`,
			checkoutID,
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) ReleaseExpired(ctx context.Context) (int64, []string, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE inventory_reservations
		SET status='released', released_at=now(), release_reason=$1
		WHERE status='active' AND expires_at <= now()
		RETURNING checkout_id`, ReleaseReasonExpired)
	if err != nil {
		return 0, nil, err
	}
	var released int64
	seen := map[string]bool{}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, nil, err
		}
		released++
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE checkout_sessions
			SET status='expired', stock_reserved=false, updated_at=now()
			WHERE id = ANY($1) AND status='active'`, ids,
		); err != nil {
			return 0, nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return released, ids, nil
}

func (s *PGStore) MarkCompleted(ctx context.Context, checkoutID string) error {
	return s.finish(ctx, checkoutID,
		`UPDATE checkout_sessions
		 SET status='completed', completed_at=now(), updated_at=now()
		 WHERE id=$1 AND status='active'`)
}

func (s *PGStore) MarkFailed(ctx context.Context, checkoutID, reason string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE checkout_sessions
		SET status='failed', failed_at=now(), failure_reason=$2, updated_at=now()
		WHERE id=$1 AND status='active'`, checkoutID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionErr(ctx, checkoutID)
	}
	return nil
}

func (s *PGStore) MarkExpired(ctx context.Context, checkoutID string) error {
	return s.finish(ctx, checkoutID,
		`UPDATE checkout_sessions
		 SET status='expired', stock_reserved=false, updated_at=now()
		 WHERE id=$1 AND status='active'`)
}

func (s *PGStore) finish(ctx context.Context, checkoutID, q string) error {
	tag, err := s.DB.Exec(ctx, q, checkoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionErr(ctx, checkoutID)
	}
	return nil
}

// transitionErr distinguishes "no such session" from "already terminal" after
// a guarded update matched zero rows.
func (s *PGStore) transitionErr(ctx context.Context, checkoutID string) error {
	var exists bool
	if err := s.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM checkout_sessions WHERE id=$1)`, checkoutID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrCheckoutNotFound
	}
	return ErrIllegalTransition
}
