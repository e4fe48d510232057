// Package voucher проверяет применимость промокодов и рассчитывает скидку.
package voucher

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/foodcart/internal/model"
)

// Reason: причина отказа в применении ваучера.
type Reason string

const (
	ReasonExpired                 Reason = "expired"
	ReasonNotYetActive            Reason = "not_yet_active"
	ReasonInactive                Reason = "inactive"
	ReasonNotEligibleForCustomer  Reason = "not_eligible_for_customer"
	ReasonUsageLimitReached       Reason = "usage_limit_reached"
	ReasonPerCustomerLimitReached Reason = "per_customer_limit_reached"
	ReasonBelowMinimumOrderValue  Reason = "below_minimum_order_value"
)

var reasonMessages = map[Reason]string{
	ReasonExpired:                 "voucher has expired",
	ReasonNotYetActive:            "voucher is not active yet",
	ReasonInactive:                "voucher is inactive",
	ReasonNotEligibleForCustomer:  "voucher is not available for this customer",
	ReasonUsageLimitReached:       "voucher usage limit reached",
	ReasonPerCustomerLimitReached: "voucher already used by this customer",
	ReasonBelowMinimumOrderValue:  "order value is below the voucher minimum",
}

// RejectionError возвращается, когда ваучер нельзя применить.
type RejectionError struct {
	Code   string
	Reason Reason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("voucher %s rejected: %s", e.Code, reasonMessages[e.Reason])
}

// Message возвращает текст причины для показа покупателю.
func (e *RejectionError) Message() string {
	return reasonMessages[e.Reason]
}

// ErrInvalidDefinition возвращается при попытке сохранить некорректный ваучер.
var ErrInvalidDefinition = errors.New("invalid voucher definition")

var hundred = decimal.NewFromInt(100)

// Evaluator проверяет ваучеры относительно текущего времени.
type Evaluator struct {
	now func() time.Time
}

// New создаёт Evaluator, использующий системное время.
func New() *Evaluator {
	return &Evaluator{now: time.Now}
}

// WithClock создаёт Evaluator с заданным источником времени.
func WithClock(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// Validate проверяет, можно ли применить ваучер для покупателя при заданной сумме заказа.
// orderValue: сумма до скидки вместе со сборами за доставку и упаковку.
//
// Сначала проверяется срок действия: просроченный ваучер не должен выглядеть
// «почти доступным» из-за лимитов.
func (e *Evaluator) Validate(v *model.Voucher, customer model.Customer, orderValue decimal.Decimal) error {
	now := e.now()
	reject := func(r Reason) error {
		return &RejectionError{Code: v.Code, Reason: r}
	}

	if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
		return reject(ReasonExpired)
	}
	if !v.StartsAt.IsZero() && now.Before(v.StartsAt) {
		return reject(ReasonNotYetActive)
	}
	if v.Status != model.VoucherActive {
		return reject(ReasonInactive)
	}
	if v.Scope == model.ScopeSpecific && !isAllowed(v.AllowedUsers, customer) {
		return reject(ReasonNotEligibleForCustomer)
	}
	if v.MaxUses > 0 && v.CurrentUses >= v.MaxUses {
		return reject(ReasonUsageLimitReached)
	}
	if v.SingleUsePerCustomer && v.UsesBy(customer.ID) > 0 {
		return reject(ReasonPerCustomerLimitReached)
	}
	if orderValue.LessThan(v.MinOrderValue) {
		return reject(ReasonBelowMinimumOrderValue)
	}

	return nil
}

func isAllowed(allowed []string, customer model.Customer) bool {
	return slices.ContainsFunc(allowed, func(id string) bool {
		return id != "" && (id == customer.ID || id == customer.Phone)
	})
}

// ComputeDiscount рассчитывает сумму скидки. Результат всегда в пределах [0, gross].
func ComputeDiscount(v *model.Voucher, gross decimal.Decimal) decimal.Decimal {
	if v == nil || !gross.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch v.DiscountType {
	case model.DiscountPercentage:
		discount = gross.Mul(v.DiscountValue).Div(hundred)
	case model.DiscountFixed:
		discount = decimal.Min(v.DiscountValue, gross)
	default:
		return decimal.Zero
	}

	discount = discount.Round(2)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(gross) {
		return gross
	}
	return discount
}

// NormalizeCode приводит код ваучера к каноническому виду.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateDefinition проверяет ваучер перед сохранением администратором.
func ValidateDefinition(v *model.Voucher) error {
	if NormalizeCode(v.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidDefinition)
	}

	switch v.DiscountType {
	case model.DiscountPercentage:
		if v.DiscountValue.IsNegative() || v.DiscountValue.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage must be within [0, 100]", ErrInvalidDefinition)
		}
	case model.DiscountFixed:
		if v.DiscountValue.IsNegative() {
			return fmt.Errorf("%w: discount value must not be negative", ErrInvalidDefinition)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidDefinition, v.DiscountType)
	}

	if v.MinOrderValue.IsNegative() {
		return fmt.Errorf("%w: minimum order value must not be negative", ErrInvalidDefinition)
	}
	if v.MaxUses < 0 {
		return fmt.Errorf("%w: max uses must not be negative", ErrInvalidDefinition)
	}
	if !v.StartsAt.IsZero() && !v.ExpiresAt.IsZero() && v.ExpiresAt.Before(v.StartsAt) {
		return fmt.Errorf("%w: expiry precedes start", ErrInvalidDefinition)
	}

	switch v.Scope {
	case model.ScopeAll:
	case model.ScopeSpecific:
		if len(v.AllowedUsers) == 0 {
			return fmt.Errorf("%w: specific scope needs allowed users", ErrInvalidDefinition)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidDefinition, v.Scope)
	}

	if v.Status != model.VoucherActive && v.Status != model.VoucherInactive {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDefinition, v.Status)
	}

	return nil
}
