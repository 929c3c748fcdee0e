package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	Create(ctx context.Context, c *Cart) error
	Get(ctx context.Context, id string) (*Cart, error)
	FindActive(ctx context.Context, ident Identity) (*Cart, error)
	GetWithItems(ctx context.Context, id string) (*Cart, []Item, error)
	GetItem(ctx context.Context, cartID, sku string) (*Item, error)
	// UpsertItem inserts or replaces the (cart_id, sku) row and recomputes
	// cart totals in the same transaction.
	UpsertItem(ctx context.Context, it *Item) error
	RemoveItem(ctx context.Context, cartID, sku string) error
	// RewriteItems replaces price fields of every given item, then recomputes
	// totals, in one transaction.
	RewriteItems(ctx context.Context, cartID string, items []Item) error
	SetStatus(ctx context.Context, cartID string, from, to Status) error
	// MarkAbandoned flips active carts with no activity since the cutoff.
	MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}

type PGStore struct{ DB *pgxpool.Pool }

const cartCols = `id, COALESCE(user_id,''), COALESCE(cart_token,''), currency,
	subtotal_cents, discount_total_cents, tax_total_cents, shipping_total_cents, grand_total_cents,
	status, created_at, updated_at`

func scanCart(row pgx.Row) (*Cart, error) {
	var c Cart
	var status string
	err := row.Scan(&c.ID, &c.UserID, &c.Token, &c.Currency,
		&c.SubtotalCents, &c.DiscountTotalCents, &c.TaxTotalCents, &c.ShippingTotalCents, &c.GrandTotalCents,
		&status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	return &c, nil
}

func (s *PGStore) Create(ctx context.Context, c *Cart) error {
	var userID, token *string
	if c.UserID != "" {
		userID = &c.UserID
	}
	if c.Token != "" {
		token = &c.Token
	}
	return s.DB.QueryRow(ctx, `
		INSERT INTO carts(id, user_id, cart_token, currency, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		c.ID, userID, token, c.Currency, string(c.Status),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *PGStore) Get(ctx context.Context, id string) (*Cart, error) {
	return scanCart(s.DB.QueryRow(ctx, `SELECT `+cartCols+` FROM carts WHERE id=$1`, id))
}

func (s *PGStore) FindActive(ctx context.Context, ident Identity) (*Cart, error) {
	if ident.UserID != "" {
		return scanCart(s.DB.QueryRow(ctx,
			`SELECT `+cartCols+` FROM carts WHERE user_id=$1 AND status='active'`, ident.UserID))
	}
	return scanCart(s.DB.QueryRow(ctx,
		`SELECT `+cartCols+` FROM carts WHERE cart_token=$1 AND status='active'`, ident.Token))
}

func (s *PGStore) GetWithItems(ctx context.Context, id string) (*Cart, []Item, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, cart_id, product_id, sku, qty, unit_price_cents,
		       line_subtotal_cents, line_discount_cents, line_tax_cents, line_total_cents,
		       created_at, updated_at
		FROM cart_items WHERE cart_id=$1 ORDER BY created_at`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.SKU, &it.Qty, &it.UnitPriceCents,
			&it.LineSubtotalCents, &it.LineDiscountCents, &it.LineTaxCents, &it.LineTotalCents,
			&it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, nil, err
		}
		items = append(items, it)
	}
	return c, items, rows.Err()
}

func (s *PGStore) GetItem(ctx context.Context, cartID, sku string) (*Item, error) {
	var it Item
	err := s.DB.QueryRow(ctx, `
		SELECT id, cart_id, product_id, sku, qty, unit_price_cents,
		       line_subtotal_cents, line_discount_cents, line_tax_cents, line_total_cents,
		       created_at, updated_at
		FROM cart_items WHERE cart_id=$1 AND sku=$2`, cartID, sku,
	).Scan(&it.ID, &it.CartID, &it.ProductID, &it.SKU, &it.Qty, &it.UnitPriceCents,
		&it.LineSubtotalCents, &it.LineDiscountCents, &it.LineTaxCents, &it.LineTotalCents,
		&it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *PGStore) UpsertItem(ctx context.Context, it *Item) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO cart_items(id, cart_id, product_id, sku, qty, unit_price_cents,
		    line_subtotal_cents, line_discount_cents, line_tax_cents, line_total_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (cart_id, sku) DO UPDATE SET
		    qty=$5, unit_price_cents=$6,
		    line_subtotal_cents=$7, line_discount_cents=$8, line_tax_cents=$9, line_total_cents=$10,
		    updated_at=now()`,
		it.ID, it.CartID, it.ProductID, it.SKU, it.Qty, it.UnitPriceCents,
		it.LineSubtotalCents, it.LineDiscountCents, it.LineTaxCents, it.LineTotalCents,
	); err != nil {
		return err
	}

	if err := recomputeTotalsTx(ctx, tx, it.CartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) RemoveItem(ctx context.Context, cartID, sku string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND sku=$2`, cartID, sku)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	if err := recomputeTotalsTx(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) RewriteItems(ctx context.Context, cartID string, items []Item) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range items {
		it := &items[i]
		if _, err := tx.Exec(ctx, `
			UPDATE cart_items SET unit_price_cents=$3,
			    line_subtotal_cents=$4, line_discount_cents=$5, line_tax_cents=$6, line_total_cents=$7,
			    updated_at=now()
			WHERE cart_id=$1 AND sku=$2`,
			cartID, it.SKU, it.UnitPriceCents,
			it.LineSubtotalCents, it.LineDiscountCents, it.LineTaxCents, it.LineTotalCents,
		); err != nil {
			return err
		}
	}

	if err := recomputeTotalsTx(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) SetStatus(ctx context.Context, cartID string, from, to Status) error {
	ct, err := s.DB.Exec(ctx,
		`UPDATE carts SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		cartID, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// distinguish missing cart from wrong state
		if _, err := s.Get(ctx, cartID); err != nil {
			return err
		}
		return ErrCartNotActive
	}
	return nil
}

func (s *PGStore) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.DB.Exec(ctx,
		`UPDATE carts SET status='abandoned', updated_at=now()
		 WHERE status='active' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// recomputeTotalsTx is the one place cart totals are written; every mutating
// method calls it before committing.
func recomputeTotalsTx(ctx context.Context, tx pgx.Tx, cartID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE carts c SET
		    subtotal_cents = s.sub,
		    grand_total_cents = s.sub - c.discount_total_cents + c.tax_total_cents + c.shipping_total_cents,
		    updated_at = now()
		FROM (
		    SELECT COALESCE(SUM(line_subtotal_cents), 0) AS sub
		    FROM cart_items WHERE cart_id=$1
		) s
		WHERE c.id=$1`, cartID)
	return err
}
