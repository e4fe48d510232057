// Package model содержит доменные сущности витрины доставки еды.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer описывает покупателя, от имени которого ведётся корзина и оформляется заказ.
type Customer struct {
	ID    string
	Phone string
	Name  string
}

// StoredCustomer: покупатель вместе с хешем пароля, как он хранится в БД.
type StoredCustomer struct {
	Customer
	PasswordHash []byte
	CreatedAt    time.Time
}

// Product описывает позицию меню в том виде, в каком её отдаёт каталог.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"is_available"`
}

// LineItem: строка корзины. UnitPrice фиксируется в момент добавления и не обновляется из каталога.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal возвращает стоимость строки.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// DeliveryWindow: выбранные дата и интервал доставки.
type DeliveryWindow struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

// IsSelected сообщает, выбраны ли и дата, и интервал.
func (w DeliveryWindow) IsSelected() bool {
	return w.Date != "" && w.TimeSlot != ""
}

// Address: адрес доставки.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}
