package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус выполнения заказа.
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
}

// CanTransitionTo сообщает, допустим ли переход заказа в статус next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid сообщает, известен ли статус.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentMode: способ оплаты заказа.
type PaymentMode string

const (
	PaymentCash   PaymentMode = "cash"
	PaymentOnline PaymentMode = "online"
)

// PaymentStatus: статус оплаты заказа.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// IsValid сообщает, известен ли статус оплаты.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// OrderItem: строка заказа с ценой и названием на момент оформления.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order: неизменяемый снимок оформленного заказа. После создания меняются только
// Status и PaymentStatus.
type Order struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Phone          string          `json:"phone"`
	Items          []OrderItem     `json:"items"`
	Address        Address         `json:"address"`
	DeliveryWindow DeliveryWindow  `json:"delivery_window"`
	Note           string          `json:"note,omitempty"`
	VoucherCode    string          `json:"voucher_code,omitempty"`
	Discount       decimal.Decimal `json:"discount"`
	GrossTotal     decimal.Decimal `json:"gross_total"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	PackagingFee   decimal.Decimal `json:"packaging_fee"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	PaymentMode    PaymentMode     `json:"payment_mode"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
