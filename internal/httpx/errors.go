package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Krisa786/glob-mart-sub001/internal/cart"
	"github.com/Krisa786/glob-mart-sub001/internal/catalog"
	"github.com/Krisa786/glob-mart-sub001/internal/checkout"
	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
	"github.com/Krisa786/glob-mart-sub001/internal/tax"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Unknown errors become an
// opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var ise *inventory.InsufficientStockError
	if errors.As(err, &ise) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"sku":       ise.SKU,
			"requested": ise.Requested,
			"available": ise.Available,
		})
		return
	}

	switch {
	case errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, checkout.ErrCheckoutNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrCheckoutExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": err.Error()})
	case errors.Is(err, cart.ErrCartNotActive),
		errors.Is(err, checkout.ErrIllegalTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, cart.ErrInvalidIdentity),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrProductUnavailable),
		errors.Is(err, cart.ErrCurrencyMismatch),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidAddress),
		errors.Is(err, checkout.ErrInvalidPostalCode),
		errors.Is(err, checkout.ErrShippingUnavailable),
		errors.Is(err, inventory.ErrUnknownReason),
		errors.Is(err, inventory.ErrReservedReason),
		errors.Is(err, inventory.ErrNegativeStock),
		errors.Is(err, inventory.ErrProductDeleted),
		errors.Is(err, tax.ErrUnsupportedCurrency):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// identityFrom reads the caller identity headers. Exactly one of the two is
// expected; the cart service rejects ambiguous identities.
func identityFrom(r *http.Request) cart.Identity {
	return cart.Identity{
		UserID: r.Header.Get("X-User-Id"),
		Token:  r.Header.Get("X-Cart-Token"),
	}
}
