package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Krisa786/glob-mart-sub001/internal/cart"
)

type CartHandler struct {
	Svc *cart.Service
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Post("/carts", h.createOrGet)
	r.Get("/carts/{id}", h.get)
	r.Post("/carts/{id}/items", h.addItem)
	r.Patch("/carts/{id}/items/{sku}", h.updateItem)
	r.Delete("/carts/{id}/items/{sku}", h.removeItem)
	r.Post("/carts/{id}/reprice", h.reprice)
	r.Post("/carts/merge", h.merge)
}

type createCartReq struct {
	Currency string `json:"currency"`
}

type cartResp struct {
	Cart  *cart.Cart  `json:"cart"`
	Items []cart.Item `json:"items,omitempty"`
}

func (h *CartHandler) createOrGet(w http.ResponseWriter, r *http.Request) {
	var req createCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Svc.CreateOrGet(ctx, identityFrom(r), req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Cart: c})
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, items, err := h.Svc.Get(ctx, chi.URLParam(r, "id"), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Cart: c, Items: items})
}

type itemReq struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req itemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.SKU == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing sku"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Svc.AddItem(ctx, chi.URLParam(r, "id"), identityFrom(r), req.SKU, req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Svc.UpdateItem(ctx, chi.URLParam(r, "id"), identityFrom(r), chi.URLParam(r, "sku"), req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	if it == nil { // qty 0 removed the line
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.RemoveItem(ctx, chi.URLParam(r, "id"), identityFrom(r), chi.URLParam(r, "sku")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) reprice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	ident := identityFrom(r)
	if err := h.Svc.Reprice(ctx, id, ident); err != nil {
		writeError(w, err)
		return
	}
	c, items, err := h.Svc.Get(ctx, id, ident)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Cart: c, Items: items})
}

type mergeReq struct {
	Currency string `json:"currency"`
}

// merge folds the guest cart named by X-Cart-Token into the cart of the user
// named by X-User-Id. Both headers are required here.
func (h *CartHandler) merge(w http.ResponseWriter, r *http.Request) {
	var req mergeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Svc.Merge(ctx, r.Header.Get("X-Cart-Token"), r.Header.Get("X-User-Id"), req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Cart: c})
}
