package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/foodcart/internal/model"
)

const voucherColumns = `code, discount_type, discount_value::text, min_order_value::text, scope,
	allowed_users, max_uses, current_uses, single_use_per_customer,
	starts_at, expires_at, status, created_at`

// CreateVoucher сохраняет новый ваучер.
func (r *PostgresRepository) CreateVoucher(ctx context.Context, v *model.Voucher) error {
	allowed := v.AllowedUsers
	if allowed == nil {
		allowed = []string{}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO vouchers (code, discount_type, discount_value, min_order_value, scope,
			allowed_users, max_uses, current_uses, single_use_per_customer, starts_at, expires_at, status)
		 VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, 0, $8, $9, $10, $11)`,
		v.Code, string(v.DiscountType), v.DiscountValue.String(), v.MinOrderValue.String(), string(v.Scope),
		allowed, v.MaxUses, v.SingleUsePerCustomer, v.StartsAt, v.ExpiresAt, string(v.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrVoucherExists, v.Code)
		}
		return fmt.Errorf("create voucher: %w", err)
	}
	return nil
}

// GetVoucher возвращает ваучер по коду. Счётчик UsedBy заполняется только для customerID.
func (r *PostgresRepository) GetVoucher(ctx context.Context, code, customerID string) (*model.Voucher, error) {
	v, err := scanVoucher(r.pool.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("get voucher: %w", err)
	}

	if customerID == "" {
		return v, nil
	}

	var uses int
	err = r.pool.QueryRow(ctx,
		`SELECT uses FROM voucher_usages WHERE code = $1 AND customer_id = $2`,
		code, customerID,
	).Scan(&uses)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get voucher usage: %w", err)
	}
	if uses > 0 {
		v.UsedBy = map[string]int{customerID: uses}
	}

	return v, nil
}

// ListVouchers возвращает все ваучеры, новые первыми.
func (r *PostgresRepository) ListVouchers(ctx context.Context) ([]model.Voucher, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select vouchers: %w", err)
	}
	defer rows.Close()

	var res []model.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		res = append(res, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetVoucherStatus включает или выключает ваучер.
func (r *PostgresRepository) SetVoucherStatus(ctx context.Context, code string, status model.VoucherStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vouchers SET status = $2 WHERE code = $1`,
		code, string(status),
	)
	if err != nil {
		return fmt.Errorf("update voucher status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

// RecordUsage увеличивает общий счётчик ваучера и счётчик покупателя в одной транзакции.
// Счётчики не выходят за max_uses и за одно использование на покупателя для
// SingleUsePerCustomer: при исчерпанном лимите возвращается ErrVoucherExhausted.
func (r *PostgresRepository) RecordUsage(ctx context.Context, code, customerID string) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var singleUse bool
		err = tx.QueryRow(ctx,
			`UPDATE vouchers SET current_uses = current_uses + 1
			 WHERE code = $1 AND (max_uses = 0 OR current_uses < max_uses)
			 RETURNING single_use_per_customer`,
			code,
		).Scan(&singleUse)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vouchers WHERE code = $1)`, code).Scan(&exists); err != nil {
				return fmt.Errorf("check voucher: %w", err)
			}
			if !exists {
				return ErrVoucherNotFound
			}
			return ErrVoucherExhausted
		}
		if err != nil {
			return fmt.Errorf("increment voucher uses: %w", err)
		}

		if singleUse {
			tag, err := tx.Exec(ctx,
				`INSERT INTO voucher_usages (code, customer_id, uses) VALUES ($1, $2, 1)
				 ON CONFLICT (code, customer_id) DO NOTHING`,
				code, customerID,
			)
			if err != nil {
				return fmt.Errorf("insert voucher usage: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrVoucherExhausted
			}
		} else {
			_, err = tx.Exec(ctx,
				`INSERT INTO voucher_usages (code, customer_id, uses) VALUES ($1, $2, 1)
				 ON CONFLICT (code, customer_id) DO UPDATE SET uses = voucher_usages.uses + 1`,
				code, customerID,
			)
			if err != nil {
				return fmt.Errorf("upsert voucher usage: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var (
		v             model.Voucher
		discountType  string
		discountValue string
		minOrder      string
		scope         string
		status        string
	)

	err := row.Scan(&v.Code, &discountType, &discountValue, &minOrder, &scope,
		&v.AllowedUsers, &v.MaxUses, &v.CurrentUses, &v.SingleUsePerCustomer,
		&v.StartsAt, &v.ExpiresAt, &status, &v.CreatedAt)
	if err != nil {
		return nil, err
	}

	if v.DiscountValue, err = decimal.NewFromString(discountValue); err != nil {
		return nil, fmt.Errorf("parse discount value: %w", err)
	}
	if v.MinOrderValue, err = decimal.NewFromString(minOrder); err != nil {
		return nil, fmt.Errorf("parse min order value: %w", err)
	}

	v.DiscountType = model.DiscountType(discountType)
	v.Scope = model.VoucherScope(scope)
	v.Status = model.VoucherStatus(status)

	return &v, nil
}
