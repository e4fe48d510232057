package checkout

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/foodcart/internal/cart"
)

var (
	// ErrCheckoutInProgress возвращается при повторном Submit для уже запущенной попытки
	// и при новом оформлении, пока прежняя попытка покупателя ждёт оплату.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrNotAwaitingPayment возвращается, если результат оплаты пришёл до её начала.
	ErrNotAwaitingPayment = errors.New("checkout is not awaiting payment")
	// ErrAlreadyResolved возвращается на повторный колбэк платёжного шлюза.
	ErrAlreadyResolved = errors.New("payment outcome already received")
	// ErrPaymentUnavailable возвращается, если не удалось начать оплату. Попытку можно повторить.
	ErrPaymentUnavailable = errors.New("payment gateway unavailable")
	// ErrOrderNotSaved возвращается, если заказ за наличные не удалось сохранить. Попытку можно повторить.
	ErrOrderNotSaved = errors.New("order could not be saved")
)

// ValidationError описывает некорректные данные оформления.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout validation failed: %s: %s", e.Field, e.Message)
}

// PricingChangedError возвращается, если при оформлении ваучер перестал быть применим
// и был снят. Покупатель должен увидеть новый итог до оплаты.
type PricingChangedError struct {
	Notice *cart.Notice
}

func (e *PricingChangedError) Error() string {
	return "cart pricing changed: " + e.Notice.String()
}

// PaymentFailedError: платёжный шлюз сообщил об отказе. Деньги не списаны.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	return "payment failed: " + e.Reason
}

// FatalError: оплата прошла, но заказ не сохранён. Автоматического повтора нет,
// корзина сохраняется, покупателю нужно обратиться в поддержку.
type FatalError struct {
	CheckoutID    string
	TransactionID string
	Err           error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("order for paid checkout %s (transaction %s) was not saved, contact support: %v",
		e.CheckoutID, e.TransactionID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
