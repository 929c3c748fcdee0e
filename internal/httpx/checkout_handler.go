package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Krisa786/glob-mart-sub001/internal/checkout"
	"github.com/Krisa786/glob-mart-sub001/internal/redisx"
)

type CheckoutHandler struct {
	Svc   *checkout.Service
	Redis *redis.Client
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.create)
	r.Get("/checkout/{id}", h.get)
	r.Get("/checkout/{id}/reservations", h.reservations)
	r.Post("/checkout/{id}/cancel", h.cancel)
}

type addressReq struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a addressReq) toAddress() checkout.Address {
	return checkout.Address{
		Line1: a.Line1, Line2: a.Line2, City: a.City,
		Region: a.Region, PostalCode: a.PostalCode, Country: a.Country,
	}
}

type createCheckoutReq struct {
	CartID          string     `json:"cart_id"`
	ShippingAddress addressReq `json:"shipping_address"`
	BillingAddress  addressReq `json:"billing_address"`
	ShippingMethod  string     `json:"shipping_method"`
}

type sessionResp struct {
	ID                 string    `json:"id"`
	CartID             string    `json:"cart_id"`
	Status             string    `json:"status"`
	Currency           string    `json:"currency"`
	TaxTotalCents      int64     `json:"tax_total_cents"`
	ShippingTotalCents int64     `json:"shipping_total_cents"`
	GrandTotalCents    int64     `json:"grand_total_cents"`
	StockReserved      bool      `json:"stock_reserved"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func toSessionResp(s *checkout.Session) sessionResp {
	return sessionResp{
		ID: s.ID, CartID: s.CartID, Status: string(s.Status), Currency: s.Currency,
		TaxTotalCents: s.TaxTotalCents, ShippingTotalCents: s.ShippingTotalCents,
		GrandTotalCents: s.GrandTotalCents, StockReserved: s.StockReserved,
		ExpiresAt: s.ExpiresAt,
	}
}

func (h *CheckoutHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CartID == "" || req.ShippingMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Svc.CreateSession(ctx, checkout.CreateSessionInput{
		CartID:          req.CartID,
		UserID:          r.Header.Get("X-User-Id"),
		CartToken:       r.Header.Get("X-Cart-Token"),
		ShippingAddress: req.ShippingAddress.toAddress(),
		BillingAddress:  req.BillingAddress.toAddress(),
		ShippingMethod:  req.ShippingMethod,
		TraceID:         r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResp(sess))
}

// ownerFrom names the caller for cache scoping: the user id for registered
// shoppers, the cart token for guests.
func ownerFrom(r *http.Request) string {
	if u := r.Header.Get("X-User-Id"); u != "" {
		return u
	}
	return r.Header.Get("X-Cart-Token")
}

func (h *CheckoutHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// Only terminal sessions are cached: an active session can expire at any
	// moment, and a stale "active" answer would mask a released hold. The key
	// carries the owner so a hit can only serve the caller that already
	// passed the ownership check; everyone else falls through to GetSession.
	owner := ownerFrom(r)
	key := fmt.Sprintf(redisx.KeyCheckoutStatus, id, owner)
	if h.Redis != nil && owner != "" {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	sess, err := h.Svc.GetSession(ctx, id, r.Header.Get("X-User-Id"), r.Header.Get("X-Cart-Token"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := toSessionResp(sess)
	if h.Redis != nil && owner != "" && sess.Status.Terminal() {
		b, _ := json.Marshal(resp)
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) reservations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.Svc.GetSession(ctx, id, r.Header.Get("X-User-Id"), r.Header.Get("X-Cart-Token")); err != nil {
		writeError(w, err)
		return
	}
	rs, err := h.Svc.Store.Reservations(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// cancel releases the session's holds and fails it, freeing the stock for
// other shoppers immediately instead of waiting for the TTL.
func (h *CheckoutHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Svc.GetSession(ctx, id, r.Header.Get("X-User-Id"), r.Header.Get("X-Cart-Token")); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Svc.FailSession(ctx, id, "canceled"); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(checkout.StatusFailed)})
}
