// Package checkout реализует конечный автомат одной попытки оформления заказа:
// проверка данных, оплата через внешний шлюз, сохранение заказа и очистка корзины.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/foodcart/internal/cart"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/validation"
)

// PaymentRequest: данные, передаваемые платёжному шлюзу.
type PaymentRequest struct {
	CheckoutID string
	Amount     decimal.Decimal
	Currency   string
	Customer   model.Customer
	Phone      string
}

// PaymentSession: созданная на стороне шлюза оплата, которую клиент завершает сам.
type PaymentSession struct {
	GatewayOrderID string
	Amount         decimal.Decimal
	Currency       string
	KeyID          string
}

// PaymentGateway начинает оплату. Результат приходит позже через Resume.
type PaymentGateway interface {
	Initiate(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
}

// OrderStore сохраняет снимок заказа.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *model.Order) (string, error)
}

// UsageRecorder учитывает использование ваучера после оформления заказа.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, code, customerID string) error
}

// Dependencies: внешние участники оформления.
type Dependencies struct {
	Payments PaymentGateway
	Orders   OrderStore
	Usage    UsageRecorder
}

// OutcomeKind: вид результата оплаты.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeCancelled
	OutcomeFailed
)

// PaymentOutcome: результат оплаты, присланный шлюзом.
type PaymentOutcome struct {
	Kind          OutcomeKind
	TransactionID string
	Reason        string
}

// Succeeded создаёт результат успешной оплаты.
func Succeeded(transactionID string) PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeSuccess, TransactionID: transactionID}
}

// Cancelled создаёт результат отмены оплаты покупателем.
func Cancelled() PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeCancelled}
}

// Failed создаёт результат отказа в оплате.
func Failed(reason string) PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeFailed, Reason: reason}
}

// Request: данные оформления, введённые покупателем.
type Request struct {
	Customer model.Customer
	Phone    string
	Address  model.Address
	Mode     model.PaymentMode
	Currency string
}

// Result описывает состояние попытки после очередного шага.
type Result struct {
	CheckoutID string
	State      State
	Totals     cart.Totals
	Session    *PaymentSession
	Order      *model.Order
}

type snapshot struct {
	items       []model.LineItem
	totals      cart.Totals
	voucherCode string
	note        string
	window      model.DeliveryWindow
}

// Orchestrator ведёт одну попытку оформления. Экземпляр одноразовый: новая попытка
// начинается с нового Orchestrator.
type Orchestrator struct {
	mu sync.Mutex

	id      string
	state   State
	ledger  *cart.Ledger
	pricing cart.Pricing
	deps    Dependencies
	logger  *zap.Logger
	now     func() time.Time

	req     Request
	snap    *snapshot
	session *PaymentSession
	order   *model.Order
	updated time.Time
}

// New создаёт автомат в состоянии Idle для указанной корзины.
func New(id string, ledger *cart.Ledger, pricing cart.Pricing, deps Dependencies, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		id:      id,
		state:   StateIdle,
		ledger:  ledger,
		pricing: pricing,
		deps:    deps,
		logger:  logger,
		now:     time.Now,
		updated: time.Now(),
	}
}

// ID возвращает идентификатор попытки. Он же становится идентификатором заказа.
func (o *Orchestrator) ID() string {
	return o.id
}

// State возвращает текущее состояние.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// UpdatedAt возвращает время последнего перехода.
func (o *Orchestrator) UpdatedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updated
}

// Ledger возвращает корзину, с которой работает автомат.
func (o *Orchestrator) Ledger() *cart.Ledger {
	return o.ledger
}

// Submit начинает оформление. При ошибке проверки автомат возвращается в Idle без
// побочных эффектов. Для оплаты наличными заказ сохраняется сразу, для онлайн-оплаты
// возвращается сессия шлюза и автомат ждёт Resume.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	o.setState(StateValidating)
	o.mu.Unlock()

	if err := o.validate(req); err != nil {
		o.transition(StateIdle)
		return nil, err
	}

	totals, notice := o.ledger.RecomputeTotals(o.pricing)
	if notice != nil {
		o.transition(StateIdle)
		return nil, &PricingChangedError{Notice: notice}
	}

	o.mu.Lock()
	o.req = req
	o.snap = &snapshot{
		items:       o.ledger.Items(),
		totals:      totals,
		voucherCode: o.ledger.VoucherCode(),
		note:        o.ledger.Note(),
		window:      o.ledger.DeliveryWindow(),
	}
	o.mu.Unlock()

	// Нулевой итог нечего списывать: онлайн-заказ оформляется сразу как оплаченный.
	if req.Mode == model.PaymentCash || totals.Total.IsZero() {
		return o.finalize(ctx, "")
	}

	session, err := o.deps.Payments.Initiate(ctx, PaymentRequest{
		CheckoutID: o.id,
		Amount:     totals.Total,
		Currency:   req.Currency,
		Customer:   req.Customer,
		Phone:      req.Phone,
	})
	if err != nil {
		o.logger.Warn("payment initiation failed", zap.String("checkout", o.id), zap.Error(err))
		o.transition(StateIdle)
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	o.mu.Lock()
	o.session = session
	o.setState(StateAwaitingPayment)
	res := o.resultLocked()
	o.mu.Unlock()

	return res, nil
}

// Resume принимает результат оплаты. Переход из AwaitingPayment выполняется не более
// одного раза: повторные колбэки получают ErrAlreadyResolved и ничего не меняют.
func (o *Orchestrator) Resume(ctx context.Context, outcome PaymentOutcome) (*Result, error) {
	o.mu.Lock()
	switch o.state {
	case StateAwaitingPayment:
	case StateIdle, StateValidating:
		o.mu.Unlock()
		return nil, ErrNotAwaitingPayment
	default:
		o.mu.Unlock()
		return nil, ErrAlreadyResolved
	}

	switch outcome.Kind {
	case OutcomeSuccess:
		o.setState(StateFinalizing)
		o.mu.Unlock()
		return o.finalize(ctx, outcome.TransactionID)
	case OutcomeCancelled:
		o.setState(StateIdle)
		o.session = nil
		res := o.resultLocked()
		o.mu.Unlock()
		o.logger.Info("payment cancelled by customer", zap.String("checkout", o.id))
		return res, nil
	default:
		o.setState(StateIdle)
		o.session = nil
		o.mu.Unlock()
		o.logger.Warn("payment failed", zap.String("checkout", o.id), zap.String("reason", outcome.Reason))
		return nil, &PaymentFailedError{Reason: outcome.Reason}
	}
}

func (o *Orchestrator) validate(req Request) error {
	if o.ledger.IsEmpty() {
		return &ValidationError{Field: "cart", Message: "cart is empty"}
	}

	if err := validation.CheckAddress(req.Address); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			return &ValidationError{Field: fe.Field, Message: fe.Message}
		}
		return &ValidationError{Field: "address", Message: err.Error()}
	}

	if !validation.IsValidPhone(req.Phone) {
		return &ValidationError{Field: "phone", Message: "phone number is invalid"}
	}

	w := o.ledger.DeliveryWindow()
	if w.Date == "" {
		return &ValidationError{Field: "delivery_date", Message: "delivery date is not selected"}
	}
	if w.TimeSlot == "" {
		return &ValidationError{Field: "time_slot", Message: "delivery time slot is not selected"}
	}

	switch req.Mode {
	case model.PaymentCash, model.PaymentOnline:
	default:
		return &ValidationError{Field: "payment_mode", Message: "unknown payment mode"}
	}

	return nil
}

// finalize сохраняет заказ. Вызывается в состоянии Validating (наличные или нулевой итог)
// или Finalizing (после оплаты). Пустой transactionID означает, что деньги не списывались.
func (o *Orchestrator) finalize(ctx context.Context, transactionID string) (*Result, error) {
	o.mu.Lock()
	if o.state == StateValidating {
		o.setState(StateFinalizing)
	}
	order := o.buildOrder(transactionID)
	o.mu.Unlock()

	if _, err := o.deps.Orders.CreateOrder(ctx, order); err != nil {
		if transactionID != "" {
			o.logger.Error("order not saved after successful payment",
				zap.String("checkout", o.id),
				zap.String("transaction", transactionID),
				zap.Error(err))
			o.transition(StateFailed)
			return nil, &FatalError{CheckoutID: o.id, TransactionID: transactionID, Err: err}
		}

		o.logger.Warn("order not saved, nothing was charged", zap.String("checkout", o.id), zap.Error(err))
		o.transition(StateIdle)
		return nil, fmt.Errorf("%w: %v", ErrOrderNotSaved, err)
	}

	if order.VoucherCode != "" && o.deps.Usage != nil {
		if err := o.deps.Usage.RecordUsage(ctx, order.VoucherCode, order.CustomerID); err != nil {
			o.logger.Error("voucher usage not recorded",
				zap.String("order", order.ID),
				zap.String("voucher", order.VoucherCode),
				zap.Error(err))
		}
	}

	o.ledger.Clear()

	o.mu.Lock()
	o.order = order
	o.setState(StateCompleted)
	res := o.resultLocked()
	o.mu.Unlock()

	o.logger.Info("order placed",
		zap.String("order", order.ID),
		zap.String("customer", order.CustomerID),
		zap.String("total", order.Total.StringFixed(2)))
	return res, nil
}

func (o *Orchestrator) buildOrder(transactionID string) *model.Order {
	s := o.snap
	items := make([]model.OrderItem, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal(),
		})
	}

	paymentStatus := model.PaymentPending
	if o.req.Mode == model.PaymentOnline {
		paymentStatus = model.PaymentPaid
	}

	now := o.now()
	return &model.Order{
		ID:             o.id,
		CustomerID:     o.req.Customer.ID,
		Phone:          validation.NormalizePhone(o.req.Phone),
		Items:          items,
		Address:        o.req.Address,
		DeliveryWindow: s.window,
		Note:           s.note,
		VoucherCode:    s.voucherCode,
		Discount:       s.totals.Discount,
		GrossTotal:     s.totals.Gross,
		DeliveryFee:    s.totals.DeliveryFee,
		PackagingFee:   s.totals.PackagingFee,
		Total:          s.totals.Total,
		Currency:       o.req.Currency,
		PaymentMode:    o.req.Mode,
		PaymentStatus:  paymentStatus,
		TransactionID:  transactionID,
		Status:         model.OrderStatusPlaced,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setState(next)
}

func (o *Orchestrator) setState(next State) {
	if !o.state.CanTransitionTo(next) {
		o.logger.Error("illegal checkout transition",
			zap.String("checkout", o.id),
			zap.Stringer("from", o.state),
			zap.Stringer("to", next))
		return
	}
	o.state = next
	o.updated = o.now()
}

func (o *Orchestrator) resultLocked() *Result {
	res := &Result{
		CheckoutID: o.id,
		State:      o.state,
		Session:    o.session,
		Order:      o.order,
	}
	if o.snap != nil {
		res.Totals = o.snap.totals
	}
	return res
}
