package redisx

import "time"

const (
	// Cached checkout session status, scoped to the caller that passed the
	// ownership check: checkout_status:{checkout_id}:{owner} -> session json
	KeyCheckoutStatus = "checkout_status:%s:%s"

	// Cached stock status: stock_status:{product_id} -> {"quantity":N,"in_stock":...}
	KeyStockStatus = "stock_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Fixed-window rate limit counter: ratelimit:{scope}:{client}
	KeyRateLimit = "ratelimit:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLStockCache  = time.Minute
	TTLDedup       = 48 * time.Hour
)
