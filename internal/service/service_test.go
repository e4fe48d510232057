package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/foodcart/internal/cart"
	"github.com/mmeshcher/foodcart/internal/catalog"
	"github.com/mmeshcher/foodcart/internal/checkout"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/repository"
	"github.com/mmeshcher/foodcart/internal/voucher"
)

type memRepo struct {
	mu        sync.Mutex
	customers map[string]model.StoredCustomer
	vouchers  map[string]*model.Voucher
	orders    map[string]*model.Order
	usage     map[string]int

	createOrderErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		customers: map[string]model.StoredCustomer{},
		vouchers:  map[string]*model.Voucher{},
		orders:    map[string]*model.Order{},
		usage:     map[string]int{},
	}
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) CreateCustomer(_ context.Context, c model.StoredCustomer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.customers {
		if existing.Phone == c.Phone {
			return fmt.Errorf("%w: %s", repository.ErrCustomerExists, c.Phone)
		}
	}
	r.customers[c.ID] = c
	return nil
}

func (r *memRepo) GetCustomerByPhone(_ context.Context, phone string) (*model.StoredCustomer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.Phone == phone {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrCustomerNotFound
}

func (r *memRepo) GetCustomer(_ context.Context, id string) (*model.StoredCustomer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	return &c, nil
}

func (r *memRepo) GetVoucher(_ context.Context, code, customerID string) (*model.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[code]
	if !ok {
		return nil, repository.ErrVoucherNotFound
	}
	cp := *v
	cp.UsedBy = map[string]int{customerID: r.usage[code+"|"+customerID]}
	return &cp, nil
}

func (r *memRepo) CreateVoucher(_ context.Context, v *model.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vouchers[v.Code]; ok {
		return repository.ErrVoucherExists
	}
	cp := *v
	r.vouchers[v.Code] = &cp
	return nil
}

func (r *memRepo) ListVouchers(_ context.Context) ([]model.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Voucher
	for _, v := range r.vouchers {
		res = append(res, *v)
	}
	return res, nil
}

func (r *memRepo) SetVoucherStatus(_ context.Context, code string, status model.VoucherStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[code]
	if !ok {
		return repository.ErrVoucherNotFound
	}
	v.Status = status
	return nil
}

func (r *memRepo) RecordUsage(_ context.Context, code, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[code]
	if !ok {
		return repository.ErrVoucherNotFound
	}
	v.CurrentUses++
	r.usage[code+"|"+customerID]++
	return nil
}

func (r *memRepo) CreateOrder(_ context.Context, o *model.Order) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createOrderErr != nil {
		return "", r.createOrderErr
	}
	if _, ok := r.orders[o.ID]; ok {
		return "", repository.ErrOrderExists
	}
	cp := *o
	r.orders[o.ID] = &cp
	return o.ID, nil
}

func (r *memRepo) GetOrder(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) ListOrdersByCustomer(_ context.Context, customerID string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (r *memRepo) ListOrders(_ context.Context, _ int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Order
	for _, o := range r.orders {
		res = append(res, *o)
	}
	return res, nil
}

func (r *memRepo) UpdateOrderStatus(_ context.Context, id string, status model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (r *memRepo) UpdatePaymentStatus(_ context.Context, id string, status model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentStatus = status
	return nil
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type memCarts struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCarts) Load(_ context.Context, customerID string) (*cart.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[customerID]
	if !ok {
		return cart.New(), nil
	}
	return cart.Decode(raw)
}

func (m *memCarts) Save(_ context.Context, customerID string, l *cart.Ledger) error {
	raw, err := cart.Encode(l)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[customerID] = raw
	return nil
}

func (m *memCarts) Delete(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, customerID)
	return nil
}

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]model.Product
}

func (c *stubCatalog) GetProduct(_ context.Context, id string) (*model.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (c *stubCatalog) set(p model.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

type stubGateway struct {
	initiateErr error
}

func (g *stubGateway) Initiate(_ context.Context, req checkout.PaymentRequest) (*checkout.PaymentSession, error) {
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	return &checkout.PaymentSession{
		GatewayOrderID: "order_" + req.CheckoutID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		KeyID:          "rzp_test",
	}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == "sig:"+orderID+"|"+paymentID
}

type recordingPublisher struct {
	mu     sync.Mutex
	placed []string
	status []model.OrderStatus
}

func (p *recordingPublisher) OrderPlaced(_ context.Context, o *model.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, o.ID)
}

func (p *recordingPublisher) OrderStatusChanged(_ context.Context, o *model.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, o.Status)
}

func (p *recordingPublisher) PaymentStatusChanged(context.Context, *model.Order) {}

type fixture struct {
	svc       *Service
	repo      *memRepo
	carts     *memCarts
	catalog   *stubCatalog
	gateway   *stubGateway
	publisher *recordingPublisher
	customer  string
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:  newMemRepo(),
		carts: &memCarts{data: map[string][]byte{}},
		catalog: &stubCatalog{products: map[string]model.Product{
			"biryani": {ID: "biryani", Name: "Chicken Biryani", Price: dec("100"), IsAvailable: true},
			"lassi":   {ID: "lassi", Name: "Sweet Lassi", Price: dec("40"), IsAvailable: true},
			"kulfi":   {ID: "kulfi", Name: "Kulfi", Price: dec("30"), IsAvailable: false},
		}},
		gateway:   &stubGateway{},
		publisher: &recordingPublisher{},
	}

	f.svc = NewService(f.repo, f.carts, f.catalog, f.gateway, f.publisher, Config{
		DeliveryFee:  dec("30"),
		PackagingFee: dec("10"),
		Currency:     "INR",
	}, nil)

	f.customer = "cust-1"
	f.repo.customers[f.customer] = model.StoredCustomer{
		Customer: model.Customer{ID: f.customer, Phone: "9876543210", Name: "Asha"},
	}

	f.repo.vouchers["SAVE10"] = &model.Voucher{
		Code:          "SAVE10",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: dec("10"),
		MinOrderValue: dec("200"),
		Scope:         model.ScopeAll,
		StartsAt:      time.Now().Add(-time.Hour),
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		Status:        model.VoucherActive,
	}
	f.repo.vouchers["FLAT50"] = &model.Voucher{
		Code:          "FLAT50",
		DiscountType:  model.DiscountFixed,
		DiscountValue: dec("50"),
		Scope:         model.ScopeAll,
		StartsAt:      time.Now().Add(-time.Hour),
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		Status:        model.VoucherActive,
	}
	return f
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.AddToCart(ctx, f.customer, "biryani")
	require.NoError(t, err)
	_, err = f.svc.SetCartQuantity(ctx, f.customer, "biryani", 2)
	require.NoError(t, err)

	tomorrow := time.Now().AddDate(0, 0, 1).Format(time.DateOnly)
	_, err = f.svc.SetDeliveryWindow(ctx, f.customer, model.DeliveryWindow{Date: tomorrow, TimeSlot: "19:00-20:00"})
	require.NoError(t, err)
}

func checkoutRequest(mode model.PaymentMode) CheckoutRequest {
	return CheckoutRequest{
		Phone: "9876543210",
		Address: model.Address{
			Line1:   "12 MG Road",
			City:    "Bengaluru",
			State:   "Karnataka",
			Pincode: "560001",
		},
		Mode: mode,
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.RegisterCustomer(ctx, "98765 43211", "Ravi", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := f.svc.AuthenticateCustomer(ctx, "9876543211", "secret123")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = f.svc.AuthenticateCustomer(ctx, "9876543211", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.AuthenticateCustomer(ctx, "9000000000", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		phone    string
		password string
		wantErr  error
	}{
		{"invalid phone", "12345", "secret123", ErrInvalidPhone},
		{"short password", "9123456780", "abc", ErrWeakPassword},
		{"duplicate phone", "9876543210", "secret123", repository.ErrCustomerExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RegisterCustomer(ctx, tt.phone, "", tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddToCartSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddToCart(ctx, f.customer, "biryani")
	require.NoError(t, err)

	f.catalog.set(model.Product{ID: "biryani", Name: "Chicken Biryani", Price: dec("120"), IsAvailable: true})

	view, err := f.svc.AddToCart(ctx, f.customer, "biryani")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.True(t, view.Items[0].UnitPrice.Equal(dec("100")))
	assert.True(t, view.Totals.Total.Equal(dec("240")))
}

func TestAddToCartErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddToCart(ctx, f.customer, "kulfi")
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = f.svc.AddToCart(ctx, f.customer, "ghost")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = f.svc.SetCartQuantity(ctx, f.customer, "biryani", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestApplyVoucherAndRejectionKeepsPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	view, err := f.svc.ApplyVoucher(ctx, f.customer, " save10 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", view.VoucherCode)
	assert.True(t, view.Totals.Discount.Equal(dec("20")))
	assert.True(t, view.Totals.Total.Equal(dec("220")))

	f.repo.vouchers["FLAT50"].Status = model.VoucherInactive

	_, err = f.svc.ApplyVoucher(ctx, f.customer, "FLAT50")
	var rejection *voucher.RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, voucher.ReasonInactive, rejection.Reason)

	view, err = f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", view.VoucherCode)
}

func TestVoucherDetachedWhenCartShrinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	_, err := f.svc.ApplyVoucher(ctx, f.customer, "SAVE10")
	require.NoError(t, err)

	view, err := f.svc.SetCartQuantity(ctx, f.customer, "biryani", 1)
	require.NoError(t, err)
	require.NotNil(t, view.Notice)
	assert.Equal(t, voucher.ReasonBelowMinimumOrderValue, view.Notice.Reason)
	assert.Empty(t, view.VoucherCode)
	assert.True(t, view.Totals.Total.Equal(dec("140")))

	view, err = f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Nil(t, view.Notice)
	assert.Empty(t, view.VoucherCode)
}

func TestSetDeliveryWindowRejectsPastDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	yesterday := time.Now().AddDate(0, 0, -1).Format(time.DateOnly)
	_, err := f.svc.SetDeliveryWindow(ctx, f.customer, model.DeliveryWindow{Date: yesterday, TimeSlot: "10:00-11:00"})
	assert.ErrorIs(t, err, ErrInvalidDeliveryWindow)

	_, err = f.svc.SetDeliveryWindow(ctx, f.customer, model.DeliveryWindow{Date: "tomorrow", TimeSlot: "10:00-11:00"})
	assert.ErrorIs(t, err, ErrInvalidDeliveryWindow)
}

func TestCashCheckoutPlacesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	_, err := f.svc.ApplyVoucher(ctx, f.customer, "FLAT50")
	require.NoError(t, err)

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentCash))
	require.NoError(t, err)
	assert.Equal(t, checkout.StateCompleted, res.State)
	require.NotNil(t, res.Order)
	assert.True(t, res.Order.Total.Equal(dec("190")))
	assert.Equal(t, model.PaymentPending, res.Order.PaymentStatus)

	assert.Equal(t, 1, f.repo.orderCount())
	assert.Equal(t, 1, f.repo.vouchers["FLAT50"].CurrentUses)
	assert.Equal(t, []string{res.CheckoutID}, f.publisher.placed)

	view, err := f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestOnlineCheckoutCompletesWithValidSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)
	require.Equal(t, checkout.StateAwaitingPayment, res.State)
	require.NotNil(t, res.Session)

	orderID := res.Session.GatewayOrderID

	_, err = f.svc.CompletePayment(ctx, f.customer, res.CheckoutID, PaymentConfirmation{
		GatewayOrderID: orderID, PaymentID: "pay_1", Signature: "forged",
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, 0, f.repo.orderCount())

	done, err := f.svc.CompletePayment(ctx, f.customer, res.CheckoutID, PaymentConfirmation{
		GatewayOrderID: orderID, PaymentID: "pay_1", Signature: "sig:" + orderID + "|pay_1",
	})
	require.NoError(t, err)
	assert.Equal(t, checkout.StateCompleted, done.State)
	assert.Equal(t, "pay_1", done.Order.TransactionID)
	assert.Equal(t, model.PaymentPaid, done.Order.PaymentStatus)
	assert.Equal(t, 1, f.repo.orderCount())
}

func TestDuplicatePaymentCallbacksCreateOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)

	orderID := res.Session.GatewayOrderID
	pc := PaymentConfirmation{GatewayOrderID: orderID, PaymentID: "pay_1", Signature: "sig:" + orderID + "|pay_1"}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		resolved  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CompletePayment(ctx, f.customer, res.CheckoutID, pc)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, checkout.ErrAlreadyResolved):
				resolved++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, resolved)
	assert.Equal(t, 1, f.repo.orderCount())
}

func TestCheckoutOfAnotherCustomerIsHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)

	_, err = f.svc.CancelPayment(ctx, "cust-2", res.CheckoutID)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestCancelAndFailPaymentKeepCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)

	cancelled, err := f.svc.CancelPayment(ctx, f.customer, res.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StateIdle, cancelled.State)

	res, err = f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)

	err = f.svc.FailPayment(ctx, f.customer, res.CheckoutID, "card declined")
	var failed *checkout.PaymentFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "card declined", failed.Reason)

	assert.Equal(t, 0, f.repo.orderCount())
	view, err := f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestCheckoutDetachesExpiredVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	_, err := f.svc.ApplyVoucher(ctx, f.customer, "FLAT50")
	require.NoError(t, err)

	f.repo.vouchers["FLAT50"].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentCash))
	var changed *checkout.PricingChangedError
	require.ErrorAs(t, err, &changed)
	assert.Equal(t, voucher.ReasonExpired, changed.Notice.Reason)
	assert.Equal(t, 0, f.repo.orderCount())

	view, err := f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Empty(t, view.VoucherCode)
	assert.True(t, view.Totals.Total.Equal(dec("240")))
}

func TestCheckoutReportsVoucherRemovedFromStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	_, err := f.svc.ApplyVoucher(ctx, f.customer, "FLAT50")
	require.NoError(t, err)

	f.repo.mu.Lock()
	delete(f.repo.vouchers, "FLAT50")
	f.repo.mu.Unlock()

	_, err = f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentCash))
	var changed *checkout.PricingChangedError
	require.ErrorAs(t, err, &changed)
	assert.Equal(t, "FLAT50", changed.Notice.VoucherCode)
	assert.Equal(t, voucher.ReasonInactive, changed.Notice.Reason)
	assert.Equal(t, 0, f.repo.orderCount())

	view, err := f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Empty(t, view.VoucherCode)
	assert.True(t, view.Totals.Discount.IsZero())
	assert.True(t, view.Totals.Total.Equal(dec("240")))

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentCash))
	require.NoError(t, err)
	assert.True(t, res.Order.Total.Equal(dec("240")))
}

func TestFatalPersistFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)

	f.repo.createOrderErr = errors.New("database is gone")
	orderID := res.Session.GatewayOrderID
	_, err = f.svc.CompletePayment(ctx, f.customer, res.CheckoutID, PaymentConfirmation{
		GatewayOrderID: orderID, PaymentID: "pay_9", Signature: "sig:" + orderID + "|pay_9",
	})

	var fatal *checkout.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "pay_9", fatal.TransactionID)

	view, err := f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
	assert.Empty(t, f.publisher.placed)
}

func TestGatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	f.gateway.initiateErr = errors.New("breaker open")

	_, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	assert.ErrorIs(t, err, checkout.ErrPaymentUnavailable)
}

func placeCashOrder(t *testing.T, f *fixture) *model.Order {
	t.Helper()
	f.fillCart(t)
	res, err := f.svc.StartCheckout(context.Background(), f.customer, checkoutRequest(model.PaymentCash))
	require.NoError(t, err)
	return res.Order
}

func TestReorderNeedsConfirmationOnPriceChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCashOrder(t, f)

	f.catalog.set(model.Product{ID: "biryani", Name: "Chicken Biryani", Price: dec("110"), IsAvailable: true})

	preview, err := f.svc.Reorder(ctx, f.customer, order.ID, false)
	require.NoError(t, err)
	assert.False(t, preview.Applied)
	require.Len(t, preview.Plan.PriceChanges, 1)
	assert.True(t, preview.Plan.PriceChanges[0].NewPrice.Equal(dec("110")))

	view, err := f.svc.GetCart(ctx, f.customer)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	applied, err := f.svc.Reorder(ctx, f.customer, order.ID, true)
	require.NoError(t, err)
	assert.True(t, applied.Applied)
	require.Len(t, applied.Cart.Items, 1)
	assert.Equal(t, 2, applied.Cart.Items[0].Quantity)
	assert.True(t, applied.Cart.Totals.Gross.Equal(dec("220")))
}

func TestReorderUnavailableProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCashOrder(t, f)

	f.catalog.set(model.Product{ID: "biryani", Name: "Chicken Biryani", Price: dec("100"), IsAvailable: false})

	_, err := f.svc.Reorder(ctx, f.customer, order.ID, true)
	var unavailable *cart.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"biryani"}, unavailable.ProductIDs)
}

func TestGetOrderOfAnotherCustomer(t *testing.T) {
	f := newFixture(t)
	order := placeCashOrder(t, f)

	_, err := f.svc.GetOrder(context.Background(), "cust-2", order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCashOrder(t, f)

	_, err := f.svc.UpdateOrderStatus(ctx, order.ID, model.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, "teleported")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := f.svc.UpdateOrderStatus(ctx, order.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, updated.Status)
	assert.Equal(t, []model.OrderStatus{model.OrderStatusConfirmed}, f.publisher.status)
}

func TestCreateVoucherDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := &model.Voucher{
		Code:          " welcome ",
		DiscountType:  model.DiscountFixed,
		DiscountValue: dec("25"),
		ExpiresAt:     time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, f.svc.CreateVoucher(ctx, v))
	assert.Equal(t, "WELCOME", v.Code)
	assert.Equal(t, model.ScopeAll, v.Scope)
	assert.Equal(t, model.VoucherActive, v.Status)

	err := f.svc.CreateVoucher(ctx, &model.Voucher{Code: "NOEXPIRY", DiscountType: model.DiscountFixed})
	assert.ErrorIs(t, err, voucher.ErrInvalidDefinition)

	assert.ErrorIs(t, f.svc.SetVoucherStatus(ctx, "welcome", "paused"), ErrInvalidStatus)
	require.NoError(t, f.svc.SetVoucherStatus(ctx, "welcome", model.VoucherInactive))
	assert.Equal(t, model.VoucherInactive, f.repo.vouchers["WELCOME"].Status)
}

func TestPruneCheckoutsKeepsAwaitingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fillCart(t)
	awaiting, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)

	completed := placeCashOrder(t, f)

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	removed := f.svc.pruneCheckouts()
	assert.Equal(t, 1, removed)

	_, err = f.svc.GetCheckout(ctx, f.customer, awaiting.CheckoutID)
	assert.NoError(t, err)
	_, err = f.svc.GetCheckout(ctx, f.customer, completed.ID)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestSecondCheckoutRejectedWhileAwaitingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	first, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)
	require.Equal(t, checkout.StateAwaitingPayment, first.State)

	_, err = f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentCash))
	assert.ErrorIs(t, err, checkout.ErrCheckoutInProgress)
	assert.Equal(t, 0, f.repo.orderCount())

	_, err = f.svc.CancelPayment(ctx, f.customer, first.CheckoutID)
	require.NoError(t, err)

	done, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentCash))
	require.NoError(t, err)
	assert.Equal(t, checkout.StateCompleted, done.State)
	assert.Equal(t, 1, f.repo.orderCount())
}

func TestStaleAwaitingCheckoutDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	_, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	res, err := f.svc.StartCheckout(ctx, f.customer, checkoutRequest(model.PaymentOnline))
	require.NoError(t, err)
	assert.Equal(t, checkout.StateAwaitingPayment, res.State)
}
