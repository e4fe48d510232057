package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/foodcart/internal/checkout"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/service"
)

type checkoutRequest struct {
	Phone       string            `json:"phone"`
	Address     model.Address     `json:"address"`
	PaymentMode model.PaymentMode `json:"payment_mode"`
}

type paymentCallbackRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type paymentFailureRequest struct {
	Reason string `json:"reason"`
}

// StartCheckout оформляет заказ по текущей корзине. Заказ за наличные создаётся
// сразу (201), онлайн-оплата возвращает данные сессии шлюза (202).
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.StartCheckout(r.Context(), customerID, service.CheckoutRequest{
		Phone:   req.Phone,
		Address: req.Address,
		Mode:    req.PaymentMode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if res.State == checkout.StateCompleted {
		status = http.StatusCreated
	}
	writeJSON(w, status, checkoutOf(res))
}

// GetCheckout возвращает состояние попытки оформления.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetCheckout(r.Context(), customerID, chi.URLParam(r, "checkoutID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{CheckoutID: view.CheckoutID, State: view.State.String()})
}

// ConfirmPayment принимает успешный колбэк Razorpay.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req paymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.CompletePayment(r.Context(), customerID, chi.URLParam(r, "checkoutID"), service.PaymentConfirmation{
		GatewayOrderID: req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutOf(res))
}

// CancelPayment обрабатывает закрытие окна оплаты покупателем.
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	res, err := h.service.CancelPayment(r.Context(), customerID, chi.URLParam(r, "checkoutID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutOf(res))
}

// FailPayment обрабатывает отказ шлюза. Попытка возвращается в исходное состояние.
func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req paymentFailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	checkoutID := chi.URLParam(r, "checkoutID")
	err := h.service.FailPayment(r.Context(), customerID, checkoutID, req.Reason)

	var failed *checkout.PaymentFailedError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, checkoutResponse{CheckoutID: checkoutID, State: checkout.StateIdle.String()})
	case errors.As(err, &failed):
		writeJSON(w, http.StatusOK, checkoutResponse{
			CheckoutID: checkoutID,
			State:      checkout.StateIdle.String(),
			Reason:     failed.Reason,
		})
	default:
		h.writeError(w, r, err)
	}
}
