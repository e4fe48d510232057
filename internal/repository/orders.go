package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/foodcart/internal/model"
)

// CreateOrder сохраняет снимок заказа. Повторная запись того же идентификатора
// возвращает ErrOrderExists.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) (string, error) {
	doc, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	err = r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO orders (id, customer_id, status, payment_status, total, document, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $7)`,
			order.ID, order.CustomerID, string(order.Status), string(order.PaymentStatus),
			order.Total.String(), doc, order.CreatedAt,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrOrderExists, order.ID)
		}
		return "", fmt.Errorf("insert order: %w", err)
	}

	return order.ID, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT document, status, payment_status, updated_at FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrdersByCustomer возвращает заказы покупателя, новые первыми.
func (r *PostgresRepository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT document, status, payment_status, updated_at
		 FROM orders
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return collectOrders(rows)
}

// ListOrders возвращает последние limit заказов всех покупателей.
func (r *PostgresRepository) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT document, status, payment_status, updated_at
		 FROM orders
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return collectOrders(rows)
}

// UpdateOrderStatus меняет статус заказа. Допустимость перехода проверяет вызывающий.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	return r.updateOrder(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
}

// UpdatePaymentStatus меняет статус оплаты заказа.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	return r.updateOrder(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
}

func (r *PostgresRepository) updateOrder(ctx context.Context, query, id, value string) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx, query, id, value)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrOrderNotFound
		}
		return nil
	})
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// scanOrder читает документ заказа и накладывает на него изменяемые колонки.
func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		doc           []byte
		status        string
		paymentStatus string
		updatedAt     time.Time
	)
	if err := row.Scan(&doc, &status, &paymentStatus, &updatedAt); err != nil {
		return nil, err
	}

	var o model.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.UpdatedAt = updatedAt

	return &o, nil
}
