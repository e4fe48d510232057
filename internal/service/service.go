// Package service реализует бизнес-логику витрины: корзину, ваучеры, оформление и заказы.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/foodcart/internal/cart"
	"github.com/mmeshcher/foodcart/internal/checkout"
	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/repository"
	"github.com/mmeshcher/foodcart/internal/validation"
	"github.com/mmeshcher/foodcart/internal/voucher"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateCustomer(ctx context.Context, c model.StoredCustomer) error
	GetCustomerByPhone(ctx context.Context, phone string) (*model.StoredCustomer, error)
	GetCustomer(ctx context.Context, id string) (*model.StoredCustomer, error)

	GetVoucher(ctx context.Context, code, customerID string) (*model.Voucher, error)
	CreateVoucher(ctx context.Context, v *model.Voucher) error
	ListVouchers(ctx context.Context) ([]model.Voucher, error)
	SetVoucherStatus(ctx context.Context, code string, status model.VoucherStatus) error
	RecordUsage(ctx context.Context, code, customerID string) error

	CreateOrder(ctx context.Context, order *model.Order) (string, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
	ListOrders(ctx context.Context, limit int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) error
}

// LedgerStore хранит корзины между запросами.
type LedgerStore interface {
	Load(ctx context.Context, customerID string) (*cart.Ledger, error)
	Save(ctx context.Context, customerID string, l *cart.Ledger) error
	Delete(ctx context.Context, customerID string) error
}

// Catalog отдаёт актуальные цены и доступность товаров.
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
}

// PaymentGateway начинает онлайн-оплату и проверяет подписи обратных вызовов.
type PaymentGateway interface {
	checkout.PaymentGateway
	VerifySignature(orderID, paymentID, signature string) bool
}

// Publisher рассылает события заказов. Ошибки публикации не возвращаются.
type Publisher interface {
	OrderPlaced(ctx context.Context, order *model.Order)
	OrderStatusChanged(ctx context.Context, order *model.Order)
	PaymentStatusChanged(ctx context.Context, order *model.Order)
}

var (
	// ErrInvalidCredentials возвращается при неверном телефоне или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidPhone возвращается при регистрации с некорректным телефоном.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrWeakPassword возвращается при регистрации со слишком коротким паролем.
	ErrWeakPassword = errors.New("password is too short")
	// ErrProductUnavailable возвращается, если товар временно недоступен для заказа.
	ErrProductUnavailable = errors.New("product is not available")
	// ErrInvalidQuantity возвращается при отрицательном количестве.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidDeliveryWindow возвращается при некорректной дате или интервале доставки.
	ErrInvalidDeliveryWindow = errors.New("invalid delivery window")
	// ErrNoteTooLong возвращается, если комментарий длиннее допустимого.
	ErrNoteTooLong = errors.New("note is too long")
	// ErrCheckoutNotFound возвращается, если попытка оформления не найдена или чужая.
	ErrCheckoutNotFound = errors.New("checkout not found")
	// ErrInvalidSignature возвращается, если подпись платёжного шлюза не сошлась.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrInvalidStatus возвращается при неизвестном статусе.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

const (
	minPasswordLength = 6
	maxNoteLength     = 500
	adminOrdersLimit  = 200
)

// Config содержит параметры ценообразования и оформления.
type Config struct {
	DeliveryFee       decimal.Decimal
	PackagingFee      decimal.Decimal
	Currency          string
	Evaluator         *voucher.Evaluator
	CheckoutRetention time.Duration
}

// Service содержит бизнес-логику витрины.
type Service struct {
	repo      Repository
	carts     LedgerStore
	catalog   Catalog
	payments  PaymentGateway
	publisher Publisher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	checkouts map[string]*checkoutEntry
}

// NewService создаёт сервис с указанными внешними участниками.
func NewService(repo Repository, carts LedgerStore, catalog Catalog, payments PaymentGateway,
	publisher Publisher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = voucher.New()
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.CheckoutRetention <= 0 {
		cfg.CheckoutRetention = 30 * time.Minute
	}

	return &Service{
		repo:      repo,
		carts:     carts,
		catalog:   catalog,
		payments:  payments,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		checkouts: make(map[string]*checkoutEntry),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterCustomer регистрирует покупателя по телефону и возвращает его идентификатор.
func (s *Service) RegisterCustomer(ctx context.Context, phone, name, password string) (string, error) {
	if !validation.IsValidPhone(phone) {
		return "", ErrInvalidPhone
	}
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	c := model.StoredCustomer{
		Customer: model.Customer{
			ID:    uuid.NewString(),
			Phone: validation.NormalizePhone(phone),
			Name:  strings.TrimSpace(name),
		},
		PasswordHash: hash,
	}
	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		if errors.Is(err, repository.ErrCustomerExists) {
			return "", repository.ErrCustomerExists
		}
		return "", err
	}

	s.logger.Info("Customer registered", zap.String("customer_id", c.ID))
	return c.ID, nil
}

// AuthenticateCustomer проверяет телефон и пароль и возвращает идентификатор покупателя.
func (s *Service) AuthenticateCustomer(ctx context.Context, phone, password string) (string, error) {
	c, err := s.repo.GetCustomerByPhone(ctx, validation.NormalizePhone(phone))
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return c.ID, nil
}

func (s *Service) customer(ctx context.Context, customerID string) (model.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return model.Customer{}, err
	}
	return c.Customer, nil
}

func (s *Service) pricing(customer model.Customer) cart.Pricing {
	return cart.Pricing{
		DeliveryFee:  s.cfg.DeliveryFee,
		PackagingFee: s.cfg.PackagingFee,
		Evaluator:    s.cfg.Evaluator,
		Customer:     customer,
	}
}
