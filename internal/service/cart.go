package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mmeshcher/foodcart/internal/cart"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/repository"
	"github.com/mmeshcher/foodcart/internal/voucher"
)

// CartView: корзина вместе с итогами, как её видит покупатель.
type CartView struct {
	Items          []model.LineItem
	Totals         cart.Totals
	VoucherCode    string
	Note           string
	DeliveryWindow model.DeliveryWindow
	Notice         *cart.Notice
}

func viewOf(l *cart.Ledger, notice *cart.Notice) *CartView {
	return &CartView{
		Items:          l.Items(),
		Totals:         l.Totals(),
		VoucherCode:    l.VoucherCode(),
		Note:           l.Note(),
		DeliveryWindow: l.DeliveryWindow(),
		Notice:         notice,
	}
}

// loadLedger восстанавливает корзину и подгружает прикреплённый ваучер из хранилища.
// Повреждённая корзина заменяется пустой.
func (s *Service) loadLedger(ctx context.Context, customer model.Customer) (*cart.Ledger, *cart.Notice, error) {
	l, err := s.carts.Load(ctx, customer.ID)
	if err != nil {
		if !errors.Is(err, cart.ErrCorruptLedger) || l == nil {
			return nil, nil, fmt.Errorf("load cart: %w", err)
		}
		s.logger.Warn("Corrupt cart replaced with empty one",
			zap.String("customer_id", customer.ID),
			zap.Error(err),
		)
	}

	code := l.VoucherCode()
	if code == "" {
		return l, nil, nil
	}

	v, err := s.repo.GetVoucher(ctx, code, customer.ID)
	if err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			l.RemoveVoucher()
			return l, &cart.Notice{VoucherCode: code, Reason: voucher.ReasonInactive}, nil
		}
		return nil, nil, fmt.Errorf("load voucher: %w", err)
	}
	l.AttachVoucher(v)

	return l, nil, nil
}

// mutateCart загружает корзину, применяет fn, пересчитывает итоги и сохраняет результат.
func (s *Service) mutateCart(ctx context.Context, customerID string, fn func(l *cart.Ledger, p cart.Pricing) error) (*CartView, error) {
	customer, err := s.customer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	l, loadNotice, err := s.loadLedger(ctx, customer)
	if err != nil {
		return nil, err
	}

	p := s.pricing(customer)
	if fn != nil {
		if err := fn(l, p); err != nil {
			return nil, err
		}
	}

	_, notice := l.RecomputeTotals(p)
	if notice == nil {
		notice = loadNotice
	}
	if notice != nil {
		s.logger.Info("Voucher detached from cart",
			zap.String("customer_id", customerID),
			zap.String("voucher", notice.VoucherCode),
			zap.String("reason", string(notice.Reason)),
		)
	}

	if fn != nil || notice != nil {
		if err := s.carts.Save(ctx, customerID, l); err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
	}

	return viewOf(l, notice), nil
}

// GetCart возвращает корзину покупателя с актуальными итогами.
func (s *Service) GetCart(ctx context.Context, customerID string) (*CartView, error) {
	return s.mutateCart(ctx, customerID, nil)
}

// AddToCart добавляет товар по текущей цене каталога. Цена фиксируется в корзине.
func (s *Service) AddToCart(ctx context.Context, customerID, productID string) (*CartView, error) {
	if productID == "" {
		return nil, cart.ErrInvalidArgument
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsAvailable {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}

	return s.mutateCart(ctx, customerID, func(l *cart.Ledger, _ cart.Pricing) error {
		return l.AddItem(product.ID, product.Name, product.Price)
	})
}

// SetCartQuantity меняет количество товара. Ноль удаляет строку.
func (s *Service) SetCartQuantity(ctx context.Context, customerID, productID string, quantity int) (*CartView, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return s.mutateCart(ctx, customerID, func(l *cart.Ledger, _ cart.Pricing) error {
		return l.SetQuantity(productID, quantity)
	})
}

// RemoveFromCart удаляет строку товара.
func (s *Service) RemoveFromCart(ctx context.Context, customerID, productID string) (*CartView, error) {
	return s.mutateCart(ctx, customerID, func(l *cart.Ledger, _ cart.Pricing) error {
		return l.RemoveItem(productID)
	})
}

// ClearCart очищает корзину.
func (s *Service) ClearCart(ctx context.Context, customerID string) error {
	if err := s.carts.Delete(ctx, customerID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// SetNote сохраняет комментарий к доставке.
func (s *Service) SetNote(ctx context.Context, customerID, note string) (*CartView, error) {
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, ErrNoteTooLong
	}
	return s.mutateCart(ctx, customerID, func(l *cart.Ledger, _ cart.Pricing) error {
		l.SetNote(note)
		return nil
	})
}

// SetDeliveryWindow выбирает дату и интервал доставки. Дата не может быть в прошлом.
func (s *Service) SetDeliveryWindow(ctx context.Context, customerID string, w model.DeliveryWindow) (*CartView, error) {
	if w.Date == "" || w.TimeSlot == "" {
		return nil, fmt.Errorf("%w: date and time slot are required", ErrInvalidDeliveryWindow)
	}

	date, err := time.Parse(time.DateOnly, w.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidDeliveryWindow)
	}
	today, _ := time.Parse(time.DateOnly, s.now().Format(time.DateOnly))
	if date.Before(today) {
		return nil, fmt.Errorf("%w: date is in the past", ErrInvalidDeliveryWindow)
	}

	return s.mutateCart(ctx, customerID, func(l *cart.Ledger, _ cart.Pricing) error {
		l.SetDeliveryWindow(w)
		return nil
	})
}

// ApplyVoucher проверяет и прикрепляет ваучер. При отказе прежний ваучер остаётся,
// возвращается *voucher.RejectionError.
func (s *Service) ApplyVoucher(ctx context.Context, customerID, code string) (*CartView, error) {
	code = voucher.NormalizeCode(code)
	if code == "" {
		return nil, repository.ErrVoucherNotFound
	}

	return s.mutateCart(ctx, customerID, func(l *cart.Ledger, p cart.Pricing) error {
		v, err := s.repo.GetVoucher(ctx, code, p.Customer.ID)
		if err != nil {
			return err
		}
		_, err = l.ApplyVoucher(v, p)
		return err
	})
}

// RemoveVoucher снимает ваучер с корзины.
func (s *Service) RemoveVoucher(ctx context.Context, customerID string) (*CartView, error) {
	return s.mutateCart(ctx, customerID, func(l *cart.Ledger, _ cart.Pricing) error {
		l.RemoveVoucher()
		return nil
	})
}
