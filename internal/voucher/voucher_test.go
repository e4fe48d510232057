package voucher

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/foodcart/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validVoucher() *model.Voucher {
	return &model.Voucher{
		Code:          "SAVE10",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: dec("10"),
		MinOrderValue: dec("150"),
		Scope:         model.ScopeAll,
		MaxUses:       100,
		CurrentUses:   3,
		StartsAt:      testNow.Add(-24 * time.Hour),
		ExpiresAt:     testNow.Add(24 * time.Hour),
		Status:        model.VoucherActive,
	}
}

func TestValidate(t *testing.T) {
	customer := model.Customer{ID: "cust-1", Phone: "9876543210"}

	tests := []struct {
		name   string
		mutate func(v *model.Voucher)
		value  string
		want   Reason
	}{
		{
			name:  "accepted",
			value: "230",
		},
		{
			name:   "expired even when everything else holds",
			mutate: func(v *model.Voucher) { v.ExpiresAt = testNow.Add(-time.Minute) },
			value:  "230",
			want:   ReasonExpired,
		},
		{
			name: "expired is reported before usage limit",
			mutate: func(v *model.Voucher) {
				v.ExpiresAt = testNow.Add(-time.Minute)
				v.CurrentUses = v.MaxUses
			},
			value: "230",
			want:  ReasonExpired,
		},
		{
			name:   "not yet active",
			mutate: func(v *model.Voucher) { v.StartsAt = testNow.Add(time.Hour) },
			value:  "230",
			want:   ReasonNotYetActive,
		},
		{
			name:   "inactive",
			mutate: func(v *model.Voucher) { v.Status = model.VoucherInactive },
			value:  "230",
			want:   ReasonInactive,
		},
		{
			name: "specific scope without customer",
			mutate: func(v *model.Voucher) {
				v.Scope = model.ScopeSpecific
				v.AllowedUsers = []string{"cust-2"}
			},
			value: "230",
			want:  ReasonNotEligibleForCustomer,
		},
		{
			name: "specific scope matched by phone",
			mutate: func(v *model.Voucher) {
				v.Scope = model.ScopeSpecific
				v.AllowedUsers = []string{"9876543210"}
			},
			value: "230",
		},
		{
			name:   "global usage exhausted",
			mutate: func(v *model.Voucher) { v.CurrentUses = 100 },
			value:  "230",
			want:   ReasonUsageLimitReached,
		},
		{
			name:   "zero max uses means unlimited",
			mutate: func(v *model.Voucher) { v.MaxUses = 0 },
			value:  "230",
		},
		{
			name: "single use per customer already used",
			mutate: func(v *model.Voucher) {
				v.SingleUsePerCustomer = true
				v.UsedBy = map[string]int{"cust-1": 1}
			},
			value: "230",
			want:  ReasonPerCustomerLimitReached,
		},
		{
			name: "other customers usage does not count",
			mutate: func(v *model.Voucher) {
				v.SingleUsePerCustomer = true
				v.UsedBy = map[string]int{"cust-9": 1}
			},
			value: "230",
		},
		{
			name:  "below minimum order value",
			value: "149.99",
			want:  ReasonBelowMinimumOrderValue,
		},
		{
			name:  "exactly minimum order value",
			value: "150",
		},
	}

	e := WithClock(func() time.Time { return testNow })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validVoucher()
			if tt.mutate != nil {
				tt.mutate(v)
			}

			err := e.Validate(v, customer, dec(tt.value))
			if tt.want == "" {
				require.NoError(t, err)
				return
			}

			var rejection *RejectionError
			require.True(t, errors.As(err, &rejection), "expected RejectionError, got %v", err)
			assert.Equal(t, tt.want, rejection.Reason)
			assert.Equal(t, "SAVE10", rejection.Code)
			assert.NotEmpty(t, rejection.Message())
		})
	}
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name  string
		typ   model.DiscountType
		value string
		gross string
		want  string
	}{
		{name: "percentage", typ: model.DiscountPercentage, value: "10", gross: "200", want: "20"},
		{name: "percentage rounds to cents", typ: model.DiscountPercentage, value: "12.5", gross: "99.99", want: "12.5"},
		{name: "full percentage", typ: model.DiscountPercentage, value: "100", gross: "200", want: "200"},
		{name: "fixed under gross", typ: model.DiscountFixed, value: "50", gross: "200", want: "50"},
		{name: "fixed clamped to gross", typ: model.DiscountFixed, value: "500", gross: "200", want: "200"},
		{name: "empty cart", typ: model.DiscountFixed, value: "50", gross: "0", want: "0"},
		{name: "unknown type", typ: "bogus", value: "50", gross: "200", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &model.Voucher{DiscountType: tt.typ, DiscountValue: dec(tt.value)}
			got := ComputeDiscount(v, dec(tt.gross))
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
			assert.True(t, got.LessThanOrEqual(dec(tt.gross)))
		})
	}
}

func TestComputeDiscountNeverExceedsGross(t *testing.T) {
	grosses := []string{"0.01", "1", "99.99", "100", "2500.50"}
	values := []string{"0", "1", "33.33", "100", "150", "100000"}

	for _, g := range grosses {
		for _, val := range values {
			for _, typ := range []model.DiscountType{model.DiscountPercentage, model.DiscountFixed} {
				v := &model.Voucher{DiscountType: typ, DiscountValue: dec(val)}
				got := ComputeDiscount(v, dec(g))
				if got.GreaterThan(dec(g)) || got.IsNegative() {
					t.Fatalf("ComputeDiscount(%s %s, %s) = %s, out of [0, gross]", typ, val, g, got)
				}
			}
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "WELCOME50", NormalizeCode("  welcome50 "))
}

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *model.Voucher)
		wantErr bool
	}{
		{name: "valid", mutate: func(v *model.Voucher) {}},
		{name: "empty code", mutate: func(v *model.Voucher) { v.Code = " " }, wantErr: true},
		{name: "percentage over 100", mutate: func(v *model.Voucher) { v.DiscountValue = dec("101") }, wantErr: true},
		{name: "negative fixed", mutate: func(v *model.Voucher) {
			v.DiscountType = model.DiscountFixed
			v.DiscountValue = dec("-1")
		}, wantErr: true},
		{name: "expiry before start", mutate: func(v *model.Voucher) { v.ExpiresAt = v.StartsAt.Add(-time.Hour) }, wantErr: true},
		{name: "specific without users", mutate: func(v *model.Voucher) { v.Scope = model.ScopeSpecific }, wantErr: true},
		{name: "unknown status", mutate: func(v *model.Voucher) { v.Status = "paused" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validVoucher()
			tt.mutate(v)
			err := ValidateDefinition(v)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDefinition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
