package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
)

type InventoryHandler struct {
	Svc *inventory.Service
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Get("/products/{id}/stock", h.status)
	r.Post("/products/{id}/stock/adjust", h.adjust)
	r.Get("/products/{id}/stock/ledger", h.ledger)
}

func (h *InventoryHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Svc.Status(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type adjustReq struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	reason, err := inventory.ParseReason(req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	if !reason.Manual() {
		writeError(w, inventory.ErrReservedReason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Svc.Adjust(ctx, chi.URLParam(r, "id"), req.Delta, reason, req.Note, r.Header.Get("X-Actor-Id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) ledger(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	entries, total, err := h.Svc.History(ctx, chi.URLParam(r, "id"), page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"page":    page,
	})
}
