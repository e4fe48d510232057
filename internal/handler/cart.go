package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/service"
)

type addItemRequest struct {
	ProductID string `json:"product_id"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type voucherRequest struct {
	Code string `json:"code"`
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, view *service.CartView, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartOf(view))
}

// GetCart возвращает корзину покупателя с итогами.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetCart(r.Context(), customerID)
	h.respondCart(w, r, view, err)
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearCart(r.Context(), customerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem добавляет единицу товара в корзину.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.AddToCart(r.Context(), customerID, req.ProductID)
	h.respondCart(w, r, view, err)
}

// SetItemQuantity задаёт количество товара. Ноль удаляет строку.
func (h *Handler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.SetCartQuantity(r.Context(), customerID, chi.URLParam(r, "productID"), *req.Quantity)
	h.respondCart(w, r, view, err)
}

// RemoveItem удаляет строку корзины.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	view, err := h.service.RemoveFromCart(r.Context(), customerID, chi.URLParam(r, "productID"))
	h.respondCart(w, r, view, err)
}

// SetNote сохраняет комментарий к заказу.
func (h *Handler) SetNote(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.SetNote(r.Context(), customerID, req.Note)
	h.respondCart(w, r, view, err)
}

// SetDeliveryWindow сохраняет дату и интервал доставки.
func (h *Handler) SetDeliveryWindow(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req model.DeliveryWindow
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.SetDeliveryWindow(r.Context(), customerID, req)
	h.respondCart(w, r, view, err)
}

// ApplyVoucher применяет ваучер к корзине.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.ApplyVoucher(r.Context(), customerID, req.Code)
	h.respondCart(w, r, view, err)
}

// RemoveVoucher снимает ваучер с корзины.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	view, err := h.service.RemoveVoucher(r.Context(), customerID)
	h.respondCart(w, r, view, err)
}
