package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCatalog reads the products table directly; the monolith deployment
// shares one database with the catalog service.
type PGCatalog struct{ DB *pgxpool.Pool }

const productCols = `id, sku, name, price_cents, currency, status, COALESCE(category_id::text, ''), deleted_at`

func (c *PGCatalog) GetByID(ctx context.Context, id string) (*Product, error) {
	return c.get(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id)
}

func (c *PGCatalog) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return c.get(ctx, `SELECT `+productCols+` FROM products WHERE sku=$1`, sku)
}

func (c *PGCatalog) get(ctx context.Context, q, arg string) (*Product, error) {
	var p Product
	err := c.DB.QueryRow(ctx, q, arg).Scan(
		&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Currency, &p.Status, &p.CategoryID, &p.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
