package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Krisa786/glob-mart-sub001/internal/redisx"
)

// StatusCache is the expiring key-value store used for the stock-status
// read model (Redis in production).
type StatusCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Service struct {
	Store Store
	Cache StatusCache
	Log   *zap.Logger

	sfg singleflight.Group // prevents cache stampede on hot products
}

// Adjust applies a manual stock delta and invalidates the cached status.
func (s *Service) Adjust(ctx context.Context, productID string, delta int64, reason Reason, note, actorID string) (*Record, error) {
	rec, err := s.Store.ApplyDelta(ctx, productID, delta, reason, note, actorID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)
	if rec.LowStock() {
		s.Log.Warn("low stock",
			zap.String("product_id", productID),
			zap.Int64("quantity", rec.Quantity),
			zap.Int64("threshold", rec.LowStockThreshold),
		)
	}
	return rec, nil
}

// Status serves the stock read model through the cache.
func (s *Service) Status(ctx context.Context, productID string) (StockStatus, error) {
	key := fmt.Sprintf(redisx.KeyStockStatus, productID)

	v, err, _ := s.sfg.Do(productID, func() (any, error) {
		if s.Cache != nil {
			if raw, err := s.Cache.Get(ctx, key); err == nil && raw != "" {
				var st StockStatus
				if err := json.Unmarshal([]byte(raw), &st); err == nil {
					return st, nil
				}
			}
		}

		rec, err := s.Store.Get(ctx, productID)
		if err != nil {
			return StockStatus{}, err
		}
		st := StatusOf(rec)

		if s.Cache != nil {
			b, _ := json.Marshal(st)
			if err := s.Cache.Set(ctx, key, string(b), redisx.TTLStockCache); err != nil {
				s.Log.Warn("stock status cache set failed", zap.Error(err))
			}
		}
		return st, nil
	})
	if err != nil {
		return StockStatus{}, err
	}
	return v.(StockStatus), nil
}

func (s *Service) History(ctx context.Context, productID string, page, perPage int) ([]LedgerEntry, int64, error) {
	return s.Store.History(ctx, productID, page, perPage)
}

func (s *Service) invalidate(ctx context.Context, productID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Del(ctx, fmt.Sprintf(redisx.KeyStockStatus, productID)); err != nil {
		s.Log.Warn("stock status cache invalidate failed", zap.Error(err))
	}
}
