package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	// ApplyDelta appends one ledger entry and updates the record in the same
	// transaction. Rejects any delta that would drive quantity below zero.
	ApplyDelta(ctx context.Context, productID string, delta int64, reason Reason, note, actorID string) (*Record, error)
	Get(ctx context.Context, productID string) (*Record, error)
	History(ctx context.Context, productID string, page, perPage int) ([]LedgerEntry, int64, error)
}

type PGStore struct{ DB *pgxpool.Pool }

// The products row is the per-product mutex: every stock mutation path locks
// it FOR UPDATE first, so ledger writes and reservation checks serialize.
func LockProduct(ctx context.Context, tx pgx.Tx, productID string) error {
	var deletedAt *time.Time
	err := tx.QueryRow(ctx,
		`SELECT deleted_at FROM products WHERE id=$1 FOR UPDATE`, productID,
	).Scan(&deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	if deletedAt != nil {
		return ErrProductDeleted
	}
	return nil
}

func (s *PGStore) ApplyDelta(ctx context.Context, productID string, delta int64, reason Reason, note, actorID string) (*Record, error) {
	if _, err := ParseReason(string(reason)); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := LockProduct(ctx, tx, productID); err != nil {
		return nil, err
	}

	rec, err := ApplyDeltaTx(ctx, tx, productID, delta, reason, note, actorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// ApplyDeltaTx assumes the caller already holds the product lock.
func ApplyDeltaTx(ctx context.Context, tx pgx.Tx, productID string, delta int64, reason Reason, note, actorID string) (*Record, error) {
	rec := Record{ProductID: productID}
	err := tx.QueryRow(ctx,
		`SELECT quantity, low_stock_threshold FROM inventory_records WHERE product_id=$1`,
		productID,
	).Scan(&rec.Quantity, &rec.LowStockThreshold)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	newQty := rec.Quantity + delta
	if newQty < 0 {
		return nil, ErrNegativeStock
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_ledger(id, product_id, delta, reason, note, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), productID, delta, string(reason), note, actorID,
	); err != nil {
		return nil, err
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO inventory_records(product_id, quantity, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (product_id) DO UPDATE SET quantity=$2, updated_at=now()
		RETURNING updated_at`,
		productID, newQty,
	).Scan(&rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.Quantity = newQty
	return &rec, nil
}

func (s *PGStore) Get(ctx context.Context, productID string) (*Record, error) {
	var rec Record
	err := s.DB.QueryRow(ctx, `
		SELECT product_id, quantity, low_stock_threshold, updated_at
		FROM inventory_records WHERE product_id=$1`, productID,
	).Scan(&rec.ProductID, &rec.Quantity, &rec.LowStockThreshold, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PGStore) History(ctx context.Context, productID string, page, perPage int) ([]LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	var total int64
	if err := s.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_ledger WHERE product_id=$1`, productID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, product_id, delta, reason, note, created_by, created_at
		FROM stock_ledger
		WHERE product_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		productID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Delta, &reason, &e.Note, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.Reason = Reason(reason)
		out = append(out, e)
	}
	return out, total, rows.Err()
}
