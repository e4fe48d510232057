package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/foodcart/internal/checkout"
	"github.com/mmeshcher/foodcart/internal/model"
)

// CheckoutRequest: данные, которые покупатель вводит при оформлении.
type CheckoutRequest struct {
	Phone   string
	Address model.Address
	Mode    model.PaymentMode
}

// CheckoutView описывает состояние попытки оформления для клиента.
type CheckoutView struct {
	CheckoutID string
	State      checkout.State
	Result     *checkout.Result
}

// PaymentConfirmation: данные обратного вызова Razorpay.
type PaymentConfirmation struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type checkoutEntry struct {
	orch       *checkout.Orchestrator
	customerID string
	session    *checkout.PaymentSession
}

// StartCheckout запускает новую попытку оформления по текущей корзине покупателя.
// Пока у покупателя есть свежая попытка, ожидающая оплату, новая не начинается.
// Попытка старше срока хранения не блокирует, но и не отменяется: поздний колбэк
// по ней всё ещё оформит заказ.
func (s *Service) StartCheckout(ctx context.Context, customerID string, req CheckoutRequest) (*checkout.Result, error) {
	customer, err := s.customer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if pendingID := s.pendingCheckout(customerID); pendingID != "" {
		return nil, fmt.Errorf("%w: %s awaits payment", checkout.ErrCheckoutInProgress, pendingID)
	}

	l, notice, err := s.loadLedger(ctx, customer)
	if err != nil {
		return nil, err
	}

	// Ваучер пропал из хранилища: покупатель должен увидеть новый итог до оплаты.
	if notice != nil {
		l.RecomputeTotals(s.pricing(customer))
		if saveErr := s.carts.Save(ctx, customerID, l); saveErr != nil {
			s.logger.Error("Failed to save repriced cart", zap.String("customer_id", customerID), zap.Error(saveErr))
		}
		return nil, &checkout.PricingChangedError{Notice: notice}
	}

	orch := checkout.New(uuid.NewString(), l, s.pricing(customer), checkout.Dependencies{
		Payments: s.payments,
		Orders:   s.repo,
		Usage:    s.repo,
	}, s.logger)

	entry := &checkoutEntry{orch: orch, customerID: customerID}
	s.mu.Lock()
	s.checkouts[orch.ID()] = entry
	s.mu.Unlock()

	res, err := orch.Submit(ctx, checkout.Request{
		Customer: customer,
		Phone:    req.Phone,
		Address:  req.Address,
		Mode:     req.Mode,
		Currency: s.cfg.Currency,
	})
	if err != nil {
		var changed *checkout.PricingChangedError
		if errors.As(err, &changed) {
			if saveErr := s.carts.Save(ctx, customerID, l); saveErr != nil {
				s.logger.Error("Failed to save repriced cart", zap.String("customer_id", customerID), zap.Error(saveErr))
			}
		}
		return nil, err
	}

	if res.Session != nil {
		s.mu.Lock()
		entry.session = res.Session
		s.mu.Unlock()
	}

	s.afterResult(ctx, customerID, res)
	return res, nil
}

// CompletePayment проверяет подпись шлюза и завершает оформление.
func (s *Service) CompletePayment(ctx context.Context, customerID, checkoutID string, pc PaymentConfirmation) (*checkout.Result, error) {
	entry, err := s.lookupCheckout(customerID, checkoutID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	session := entry.session
	s.mu.Unlock()

	if session == nil {
		return nil, checkout.ErrNotAwaitingPayment
	}
	if pc.GatewayOrderID != session.GatewayOrderID ||
		!s.payments.VerifySignature(pc.GatewayOrderID, pc.PaymentID, pc.Signature) {
		s.logger.Warn("Payment signature mismatch",
			zap.String("checkout_id", checkoutID),
			zap.String("gateway_order_id", pc.GatewayOrderID),
		)
		return nil, ErrInvalidSignature
	}

	res, err := entry.orch.Resume(ctx, checkout.Succeeded(pc.PaymentID))
	if err != nil {
		return nil, err
	}

	s.afterResult(ctx, customerID, res)
	return res, nil
}

// CancelPayment сообщает, что покупатель закрыл окно оплаты. Заказ не создаётся.
func (s *Service) CancelPayment(ctx context.Context, customerID, checkoutID string) (*checkout.Result, error) {
	entry, err := s.lookupCheckout(customerID, checkoutID)
	if err != nil {
		return nil, err
	}
	return entry.orch.Resume(ctx, checkout.Cancelled())
}

// FailPayment сообщает об отказе шлюза в оплате.
func (s *Service) FailPayment(ctx context.Context, customerID, checkoutID, reason string) error {
	entry, err := s.lookupCheckout(customerID, checkoutID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "payment declined"
	}
	_, err = entry.orch.Resume(ctx, checkout.Failed(reason))
	return err
}

// GetCheckout возвращает состояние попытки оформления.
func (s *Service) GetCheckout(_ context.Context, customerID, checkoutID string) (*CheckoutView, error) {
	entry, err := s.lookupCheckout(customerID, checkoutID)
	if err != nil {
		return nil, err
	}
	return &CheckoutView{CheckoutID: checkoutID, State: entry.orch.State()}, nil
}

// StartCheckoutJanitor запускает фоновую очистку реестра попыток оформления.
func (s *Service) StartCheckoutJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pruneCheckouts()
			}
		}
	}()
}

// pruneCheckouts удаляет попытки, не менявшиеся дольше срока хранения.
// Попытки, ожидающие оплату, остаются до колбэка.
func (s *Service) pruneCheckouts() int {
	cutoff := s.now().Add(-s.cfg.CheckoutRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.checkouts {
		if entry.orch.State() == checkout.StateAwaitingPayment {
			continue
		}
		if entry.orch.UpdatedAt().Before(cutoff) {
			delete(s.checkouts, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Checkouts pruned", zap.Int("count", removed))
	}
	return removed
}

// pendingCheckout возвращает попытку покупателя, ожидающую оплату и не старше срока хранения.
func (s *Service) pendingCheckout(customerID string) string {
	cutoff := s.now().Add(-s.cfg.CheckoutRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.checkouts {
		if entry.customerID != customerID || entry.orch.State() != checkout.StateAwaitingPayment {
			continue
		}
		if !entry.orch.UpdatedAt().Before(cutoff) {
			return id
		}
	}
	return ""
}

func (s *Service) lookupCheckout(customerID, checkoutID string) (*checkoutEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.checkouts[checkoutID]
	if !ok || entry.customerID != customerID {
		return nil, ErrCheckoutNotFound
	}
	return entry, nil
}

// afterResult выполняет побочные эффекты завершённого оформления.
func (s *Service) afterResult(ctx context.Context, customerID string, res *checkout.Result) {
	if res == nil || res.State != checkout.StateCompleted || res.Order == nil {
		return
	}

	if err := s.carts.Delete(ctx, customerID); err != nil {
		s.logger.Error("Failed to clear cart after order",
			zap.String("customer_id", customerID),
			zap.String("order_id", res.Order.ID),
			zap.Error(err),
		)
	}

	if s.publisher != nil {
		s.publisher.OrderPlaced(ctx, res.Order)
	}
}
