package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/foodcart/internal/cart"
	"github.com/mmeshcher/foodcart/internal/catalog"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/repository"
	"github.com/mmeshcher/foodcart/internal/voucher"
)

const catalogConcurrency = 4

// ReorderResult: итог повтора заказа. Если цены изменились и подтверждения не было,
// корзина не меняется и Cart пуст.
type ReorderResult struct {
	Plan    *cart.ReorderPlan
	Applied bool
	Cart    *CartView
}

// ListOrders возвращает заказы покупателя.
func (s *Service) ListOrders(ctx context.Context, customerID string) ([]model.Order, error) {
	return s.repo.ListOrdersByCustomer(ctx, customerID)
}

// GetOrder возвращает заказ покупателя. Чужой заказ неотличим от отсутствующего.
func (s *Service) GetOrder(ctx context.Context, customerID, orderID string) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

// Reorder сверяет прошлый заказ с каталогом. Без confirm при изменившихся ценах
// возвращается только план. С confirm или без изменений корзина заменяется
// позициями заказа по текущим ценам.
func (s *Service) Reorder(ctx context.Context, customerID, orderID string, confirm bool) (*ReorderResult, error) {
	order, err := s.GetOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	products, err := s.lookupProducts(ctx, order.Items)
	if err != nil {
		return nil, err
	}

	plan, err := cart.Reconcile(order.Items, products)
	if err != nil {
		return nil, err
	}

	if plan.NeedsConfirmation() && !confirm {
		return &ReorderResult{Plan: plan}, nil
	}

	view, err := s.mutateCart(ctx, customerID, func(l *cart.Ledger, _ cart.Pricing) error {
		plan.Apply(l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order repeated",
		zap.String("customer_id", customerID),
		zap.String("order_id", orderID),
		zap.Int("price_changes", len(plan.PriceChanges)),
	)
	return &ReorderResult{Plan: plan, Applied: true, Cart: view}, nil
}

// lookupProducts параллельно запрашивает товары заказа. Неизвестные каталогу товары
// в результат не попадают.
func (s *Service) lookupProducts(ctx context.Context, items []model.OrderItem) (map[string]model.Product, error) {
	var (
		mu       sync.Mutex
		products = make(map[string]model.Product, len(items))
		seen     = make(map[string]struct{}, len(items))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogConcurrency)

	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}

		id := it.ProductID
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, id)
			if err != nil {
				if errors.Is(err, catalog.ErrProductNotFound) {
					return nil
				}
				return fmt.Errorf("lookup product %s: %w", id, err)
			}
			mu.Lock()
			products[id] = *p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

// ListAllOrders возвращает последние заказы всех покупателей.
func (s *Service) ListAllOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, adminOrdersLimit)
}

// UpdateOrderStatus переводит заказ в новый статус по таблице допустимых переходов.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, err
	}

	o.Status = status
	o.UpdatedAt = s.now()
	if s.publisher != nil {
		s.publisher.OrderStatusChanged(ctx, o)
	}

	s.logger.Info("Order status changed", zap.String("order_id", orderID), zap.String("status", string(status)))
	return o, nil
}

// UpdatePaymentStatus меняет статус оплаты заказа.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID string, status model.PaymentStatus) (*model.Order, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return nil, err
	}

	o.PaymentStatus = status
	o.UpdatedAt = s.now()
	if s.publisher != nil {
		s.publisher.PaymentStatusChanged(ctx, o)
	}
	return o, nil
}

// CreateVoucher проверяет и сохраняет новый ваучер.
func (s *Service) CreateVoucher(ctx context.Context, v *model.Voucher) error {
	v.Code = voucher.NormalizeCode(v.Code)
	if v.Scope == "" {
		v.Scope = model.ScopeAll
	}
	if v.Status == "" {
		v.Status = model.VoucherActive
	}
	if v.StartsAt.IsZero() {
		v.StartsAt = s.now().Truncate(time.Second)
	}

	if v.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiry is required", voucher.ErrInvalidDefinition)
	}
	if err := voucher.ValidateDefinition(v); err != nil {
		return err
	}

	if err := s.repo.CreateVoucher(ctx, v); err != nil {
		return err
	}

	s.logger.Info("Voucher created", zap.String("code", v.Code))
	return nil
}

// ListVouchers возвращает все ваучеры.
func (s *Service) ListVouchers(ctx context.Context) ([]model.Voucher, error) {
	return s.repo.ListVouchers(ctx)
}

// SetVoucherStatus включает или выключает ваучер.
func (s *Service) SetVoucherStatus(ctx context.Context, code string, status model.VoucherStatus) error {
	switch status {
	case model.VoucherActive, model.VoucherInactive:
	default:
		return ErrInvalidStatus
	}
	return s.repo.SetVoucherStatus(ctx, voucher.NormalizeCode(code), status)
}
