// Package payment реализует платёжный шлюз поверх Razorpay.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/mmeshcher/foodcart/internal/checkout"
)

// ErrGatewayUnavailable возвращается, когда шлюз не отвечает или отключён предохранителем.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// orderCreator описывает часть API Razorpay, нужную для создания платёжного заказа.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Gateway создаёт платёжные заказы в Razorpay и проверяет подписи обратных вызовов.
type Gateway struct {
	orders  orderCreator
	keyID   string
	secret  string
	breaker *gobreaker.CircuitBreaker[map[string]interface{}]
	logger  *zap.Logger
}

// NewRazorpayGateway создаёт шлюз с клиентом Razorpay.
func NewRazorpayGateway(keyID, secret string, logger *zap.Logger) *Gateway {
	client := razorpay.NewClient(keyID, secret)
	return newGateway(client.Order, keyID, secret, logger)
}

func newGateway(orders orderCreator, keyID, secret string, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}

	st := gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Gateway{
		orders:  orders,
		keyID:   keyID,
		secret:  secret,
		breaker: gobreaker.NewCircuitBreaker[map[string]interface{}](st),
		logger:  logger,
	}
}

// Initiate создаёт заказ Razorpay на сумму к оплате. Сумма передаётся в пайсах.
func (g *Gateway) Initiate(ctx context.Context, req checkout.PaymentRequest) (*checkout.PaymentSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("invalid payment amount %s", req.Amount)
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	data := map[string]interface{}{
		"amount":          ToMinorUnits(req.Amount),
		"currency":        currency,
		"receipt":         req.CheckoutID,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"customer_id": req.Customer.ID,
			"phone":       req.Phone,
		},
	}

	resp, err := g.breaker.Execute(func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		g.logger.Error("Failed to create razorpay order",
			zap.String("checkout_id", req.CheckoutID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	id, _ := resp["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: empty order id in response", ErrGatewayUnavailable)
	}

	return &checkout.PaymentSession{
		GatewayOrderID: id,
		Amount:         req.Amount,
		Currency:       currency,
		KeyID:          g.keyID,
	}, nil
}

// VerifySignature проверяет подпись Razorpay над строкой "orderID|paymentID".
func (g *Gateway) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := Sign(g.secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign вычисляет подпись так же, как её вычисляет Razorpay.
func Sign(secret, orderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

// ToMinorUnits переводит сумму в рупиях в пайсы.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
