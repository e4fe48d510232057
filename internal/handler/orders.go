package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type reorderRequest struct {
	Confirm bool `json:"confirm"`
}

// ListOrders возвращает заказы покупателя. Пустой список отдаётся как 204.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), customerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ покупателя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), customerID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Reorder переносит позиции прошлого заказа в корзину по текущим ценам.
// Если цены изменились, без confirm возвращается только список изменений.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.Reorder(r.Context(), customerID, chi.URLParam(r, "orderID"), req.Confirm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reorderOf(res))
}
