package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/foodcart/internal/model"
)

// CreateCustomer сохраняет нового покупателя.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c model.StoredCustomer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customers (id, phone, name, password_hash) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Phone, c.Name, c.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCustomerExists, c.Phone)
		}
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// GetCustomerByPhone возвращает покупателя по номеру телефона.
func (r *PostgresRepository) GetCustomerByPhone(ctx context.Context, phone string) (*model.StoredCustomer, error) {
	return r.getCustomer(ctx, `SELECT id, phone, name, password_hash, created_at FROM customers WHERE phone = $1`, phone)
}

// GetCustomer возвращает покупателя по идентификатору.
func (r *PostgresRepository) GetCustomer(ctx context.Context, id string) (*model.StoredCustomer, error) {
	return r.getCustomer(ctx, `SELECT id, phone, name, password_hash, created_at FROM customers WHERE id = $1`, id)
}

func (r *PostgresRepository) getCustomer(ctx context.Context, query string, arg string) (*model.StoredCustomer, error) {
	var c model.StoredCustomer
	err := r.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Phone, &c.Name, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}
