package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/foodcart/internal/model"
)

type statusRequest struct {
	Status string `json:"status"`
}

// AdminListOrders возвращает последние заказы всех покупателей.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// AdminUpdateOrderStatus переводит заказ в новый статус.
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), model.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// AdminUpdatePaymentStatus меняет статус оплаты заказа.
func (h *Handler) AdminUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "orderID"), model.PaymentStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// AdminListVouchers возвращает все ваучеры.
func (h *Handler) AdminListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.service.ListVouchers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]voucherPayload, 0, len(vouchers))
	for _, v := range vouchers {
		resp = append(resp, voucherOf(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminCreateVoucher создаёт ваучер.
func (h *Handler) AdminCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	v := req.toModel()
	if err := h.service.CreateVoucher(r.Context(), v); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, voucherOf(*v))
}

// AdminSetVoucherStatus включает или выключает ваучер.
func (h *Handler) AdminSetVoucherStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetVoucherStatus(r.Context(), chi.URLParam(r, "code"), model.VoucherStatus(req.Status)); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
