package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/foodcart/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/customer", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)

			r.Post("/items", h.AddItem)
			r.Put("/items/{productID}", h.SetItemQuantity)
			r.Delete("/items/{productID}", h.RemoveItem)

			r.Put("/note", h.SetNote)
			r.Put("/delivery-window", h.SetDeliveryWindow)

			r.Post("/voucher", h.ApplyVoucher)
			r.Delete("/voucher", h.RemoveVoucher)
		})

		r.Route("/api/checkout", func(r chi.Router) {
			r.Post("/", h.StartCheckout)
			r.Get("/{checkoutID}", h.GetCheckout)
			r.Post("/{checkoutID}/payment", h.ConfirmPayment)
			r.Post("/{checkoutID}/cancel", h.CancelPayment)
			r.Post("/{checkoutID}/failure", h.FailPayment)
		})

		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/reorder", h.Reorder)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(custommiddleware.AdminAuth(h.adminToken, h.logger))

		r.Get("/orders", h.AdminListOrders)
		r.Patch("/orders/{orderID}/status", h.AdminUpdateOrderStatus)
		r.Patch("/orders/{orderID}/payment-status", h.AdminUpdatePaymentStatus)

		r.Get("/vouchers", h.AdminListVouchers)
		r.Post("/vouchers", h.AdminCreateVoucher)
		r.Patch("/vouchers/{code}/status", h.AdminSetVoucherStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
