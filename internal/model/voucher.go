package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType описывает способ расчёта скидки по ваучеру.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// VoucherScope определяет, кому доступен ваучер.
type VoucherScope string

const (
	ScopeAll      VoucherScope = "all"
	ScopeSpecific VoucherScope = "specific"
)

// VoucherStatus описывает административный статус ваучера.
type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "active"
	VoucherInactive VoucherStatus = "inactive"
)

// Voucher описывает промокод со всеми условиями применимости.
//
// UsedBy содержит счётчики использования по покупателям. Хранилище заполняет его
// только для того покупателя, от имени которого запрошен ваучер.
type Voucher struct {
	Code                 string
	DiscountType         DiscountType
	DiscountValue        decimal.Decimal
	MinOrderValue        decimal.Decimal
	Scope                VoucherScope
	AllowedUsers         []string
	MaxUses              int
	CurrentUses          int
	SingleUsePerCustomer bool
	UsedBy               map[string]int
	StartsAt             time.Time
	ExpiresAt            time.Time
	Status               VoucherStatus
	CreatedAt            time.Time
}

// UsesBy возвращает число использований ваучера указанным покупателем.
func (v *Voucher) UsesBy(customerID string) int {
	if v.UsedBy == nil {
		return 0
	}
	return v.UsedBy[customerID]
}
