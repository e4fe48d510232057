// Package handler содержит HTTP-обработчики API витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/foodcart/internal/cart"
	"github.com/mmeshcher/foodcart/internal/catalog"
	"github.com/mmeshcher/foodcart/internal/checkout"
	"github.com/mmeshcher/foodcart/internal/middleware"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/repository"
	"github.com/mmeshcher/foodcart/internal/service"
	"github.com/mmeshcher/foodcart/internal/voucher"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterCustomer(ctx context.Context, phone, name, password string) (string, error)
	AuthenticateCustomer(ctx context.Context, phone, password string) (string, error)

	GetCart(ctx context.Context, customerID string) (*service.CartView, error)
	ClearCart(ctx context.Context, customerID string) error
	AddToCart(ctx context.Context, customerID, productID string) (*service.CartView, error)
	SetCartQuantity(ctx context.Context, customerID, productID string, quantity int) (*service.CartView, error)
	RemoveFromCart(ctx context.Context, customerID, productID string) (*service.CartView, error)
	SetNote(ctx context.Context, customerID, note string) (*service.CartView, error)
	SetDeliveryWindow(ctx context.Context, customerID string, w model.DeliveryWindow) (*service.CartView, error)
	ApplyVoucher(ctx context.Context, customerID, code string) (*service.CartView, error)
	RemoveVoucher(ctx context.Context, customerID string) (*service.CartView, error)

	StartCheckout(ctx context.Context, customerID string, req service.CheckoutRequest) (*checkout.Result, error)
	GetCheckout(ctx context.Context, customerID, checkoutID string) (*service.CheckoutView, error)
	CompletePayment(ctx context.Context, customerID, checkoutID string, pc service.PaymentConfirmation) (*checkout.Result, error)
	CancelPayment(ctx context.Context, customerID, checkoutID string) (*checkout.Result, error)
	FailPayment(ctx context.Context, customerID, checkoutID, reason string) error

	ListOrders(ctx context.Context, customerID string) ([]model.Order, error)
	GetOrder(ctx context.Context, customerID, orderID string) (*model.Order, error)
	Reorder(ctx context.Context, customerID, orderID string, confirm bool) (*service.ReorderResult, error)

	ListAllOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status model.PaymentStatus) (*model.Order, error)
	CreateVoucher(ctx context.Context, v *model.Voucher) error
	ListVouchers(ctx context.Context) ([]model.Voucher, error)
	SetVoucherStatus(ctx context.Context, code string, status model.VoucherStatus) error
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	adminToken     string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, adminToken string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		adminToken:     adminToken,
	}
}

type registerRequest struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового покупателя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Phone == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customerID, err := h.service.RegisterCustomer(r.Context(), req.Phone, req.Name, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, customerID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию покупателя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Phone == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customerID, err := h.service.AuthenticateCustomer(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, customerID)
	w.WriteHeader(http.StatusOK)
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetCustomerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return id, ok
}

type errorResponse struct {
	Error         string   `json:"error"`
	Field         string   `json:"field,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	VoucherCode   string   `json:"voucher_code,omitempty"`
	TransactionID string   `json:"transaction_id,omitempty"`
	ProductIDs    []string `json:"product_ids,omitempty"`
}

// writeError переводит доменную ошибку в HTTP-ответ.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *checkout.ValidationError
		rejection     *voucher.RejectionError
		changed       *checkout.PricingChangedError
		paymentFailed *checkout.PaymentFailedError
		fatal         *checkout.FatalError
		unavailable   *cart.UnavailableError
		rateLimited   *catalog.RateLimitedError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validationErr.Message, Field: validationErr.Field})
	case errors.As(err, &rejection):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:       rejection.Message(),
			Reason:      string(rejection.Reason),
			VoucherCode: rejection.Code,
		})
	case errors.As(err, &changed):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:       "cart total changed, please review before paying",
			Reason:      string(changed.Notice.Reason),
			VoucherCode: changed.Notice.VoucherCode,
		})
	case errors.As(err, &paymentFailed):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: paymentFailed.Error(), Reason: paymentFailed.Reason})
	case errors.As(err, &fatal):
		h.logger.Error("Paid order was not saved",
			zap.String("checkout_id", fatal.CheckoutID),
			zap.String("transaction_id", fatal.TransactionID),
			zap.Error(fatal.Err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:         "payment received but the order could not be saved, please contact support",
			TransactionID: fatal.TransactionID,
		})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "some items are no longer available", ProductIDs: unavailable.ProductIDs})
	case errors.As(err, &rateLimited):
		if rateLimited.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "menu is temporarily unavailable"})

	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, repository.ErrVoucherNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, service.ErrCheckoutNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})

	case errors.Is(err, repository.ErrCustomerExists),
		errors.Is(err, repository.ErrVoucherExists),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, checkout.ErrCheckoutInProgress),
		errors.Is(err, checkout.ErrNotAwaitingPayment),
		errors.Is(err, checkout.ErrAlreadyResolved):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidDeliveryWindow),
		errors.Is(err, service.ErrNoteTooLong),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, voucher.ErrInvalidDefinition),
		errors.Is(err, cart.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.Is(err, checkout.ErrPaymentUnavailable),
		errors.Is(err, checkout.ErrOrderNotSaved):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})

	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
