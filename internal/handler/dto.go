package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/foodcart/internal/cart"
	"github.com/mmeshcher/foodcart/internal/checkout"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/payment"
	"github.com/mmeshcher/foodcart/internal/service"
	"github.com/mmeshcher/foodcart/internal/voucher"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type cartItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type noticeResponse struct {
	VoucherCode string `json:"voucher_code"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
}

type totalsResponse struct {
	Gross        string `json:"gross"`
	Discount     string `json:"discount"`
	DeliveryFee  string `json:"delivery_fee"`
	PackagingFee string `json:"packaging_fee"`
	Total        string `json:"total"`
}

type cartResponse struct {
	Items          []cartItemResponse   `json:"items"`
	Totals         totalsResponse       `json:"totals"`
	VoucherCode    string               `json:"voucher_code,omitempty"`
	Note           string               `json:"note,omitempty"`
	DeliveryWindow model.DeliveryWindow `json:"delivery_window"`
	Notice         *noticeResponse      `json:"notice,omitempty"`
}

func totalsOf(t cart.Totals) totalsResponse {
	return totalsResponse{
		Gross:        money(t.Gross),
		Discount:     money(t.Discount),
		DeliveryFee:  money(t.DeliveryFee),
		PackagingFee: money(t.PackagingFee),
		Total:        money(t.Total),
	}
}

func noticeOf(n *cart.Notice) *noticeResponse {
	if n == nil {
		return nil
	}
	return &noticeResponse{
		VoucherCode: n.VoucherCode,
		Reason:      string(n.Reason),
		Message:     (&voucher.RejectionError{Code: n.VoucherCode, Reason: n.Reason}).Message(),
	}
}

func cartOf(v *service.CartView) cartResponse {
	items := make([]cartItemResponse, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, cartItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: money(it.UnitPrice),
			Quantity:  it.Quantity,
			Subtotal:  money(it.Subtotal()),
		})
	}

	return cartResponse{
		Items:          items,
		Totals:         totalsOf(v.Totals),
		VoucherCode:    v.VoucherCode,
		Note:           v.Note,
		DeliveryWindow: v.DeliveryWindow,
		Notice:         noticeOf(v.Notice),
	}
}

type paymentResponse struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	KeyID          string `json:"key_id"`
	Amount         string `json:"amount"`
	AmountMinor    int64  `json:"amount_paise"`
	Currency       string `json:"currency"`
}

type checkoutResponse struct {
	CheckoutID string           `json:"checkout_id"`
	State      string           `json:"state"`
	Totals     *totalsResponse  `json:"totals,omitempty"`
	Payment    *paymentResponse `json:"payment,omitempty"`
	Order      *model.Order     `json:"order,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

func checkoutOf(res *checkout.Result) checkoutResponse {
	resp := checkoutResponse{
		CheckoutID: res.CheckoutID,
		State:      res.State.String(),
		Order:      res.Order,
	}
	if !res.Totals.Total.IsZero() {
		t := totalsOf(res.Totals)
		resp.Totals = &t
	}
	if s := res.Session; s != nil && res.State == checkout.StateAwaitingPayment {
		resp.Payment = &paymentResponse{
			GatewayOrderID: s.GatewayOrderID,
			KeyID:          s.KeyID,
			Amount:         money(s.Amount),
			AmountMinor:    payment.ToMinorUnits(s.Amount),
			Currency:       s.Currency,
		}
	}
	return resp
}

type priceChangeResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	OldPrice  string `json:"old_price"`
	NewPrice  string `json:"new_price"`
}

type reorderResponse struct {
	Applied      bool                  `json:"applied"`
	PriceChanges []priceChangeResponse `json:"price_changes"`
	Cart         *cartResponse         `json:"cart,omitempty"`
}

func reorderOf(res *service.ReorderResult) reorderResponse {
	changes := make([]priceChangeResponse, 0, len(res.Plan.PriceChanges))
	for _, c := range res.Plan.PriceChanges {
		changes = append(changes, priceChangeResponse{
			ProductID: c.ProductID,
			Name:      c.Name,
			OldPrice:  money(c.OldPrice),
			NewPrice:  money(c.NewPrice),
		})
	}

	resp := reorderResponse{Applied: res.Applied, PriceChanges: changes}
	if res.Cart != nil {
		c := cartOf(res.Cart)
		resp.Cart = &c
	}
	return resp
}

type voucherPayload struct {
	Code                 string              `json:"code"`
	DiscountType         model.DiscountType  `json:"discount_type"`
	DiscountValue        decimal.Decimal     `json:"discount_value"`
	MinOrderValue        decimal.Decimal     `json:"min_order_value"`
	Scope                model.VoucherScope  `json:"scope"`
	AllowedUsers         []string            `json:"allowed_users,omitempty"`
	MaxUses              int                 `json:"max_uses"`
	CurrentUses          int                 `json:"current_uses"`
	SingleUsePerCustomer bool                `json:"single_use_per_customer"`
	StartsAt             time.Time           `json:"starts_at"`
	ExpiresAt            time.Time           `json:"expires_at"`
	Status               model.VoucherStatus `json:"status"`
}

func (p voucherPayload) toModel() *model.Voucher {
	return &model.Voucher{
		Code:                 p.Code,
		DiscountType:         p.DiscountType,
		DiscountValue:        p.DiscountValue,
		MinOrderValue:        p.MinOrderValue,
		Scope:                p.Scope,
		AllowedUsers:         p.AllowedUsers,
		MaxUses:              p.MaxUses,
		SingleUsePerCustomer: p.SingleUsePerCustomer,
		StartsAt:             p.StartsAt,
		ExpiresAt:            p.ExpiresAt,
		Status:               p.Status,
	}
}

func voucherOf(v model.Voucher) voucherPayload {
	return voucherPayload{
		Code:                 v.Code,
		DiscountType:         v.DiscountType,
		DiscountValue:        v.DiscountValue,
		MinOrderValue:        v.MinOrderValue,
		Scope:                v.Scope,
		AllowedUsers:         v.AllowedUsers,
		MaxUses:              v.MaxUses,
		CurrentUses:          v.CurrentUses,
		SingleUsePerCustomer: v.SingleUsePerCustomer,
		StartsAt:             v.StartsAt,
		ExpiresAt:            v.ExpiresAt,
		Status:               v.Status,
	}
}
