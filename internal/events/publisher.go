// Package events публикует события заказов в Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mmeshcher/foodcart/internal/model"
)

// TopicOrders: топик Kafka для событий заказов.
const TopicOrders = "foodcart-orders"

// Типы событий заказа.
const (
	// TypeOrderPlaced: заказ оформлен.
	TypeOrderPlaced = "order_placed"
	// TypeOrderStatusChanged: администратор сменил статус заказа.
	TypeOrderStatusChanged = "order_status_changed"
	// TypePaymentChanged: сменился статус оплаты заказа.
	TypePaymentChanged = "payment_status_changed"
)

// OrderEvent: сообщение о заказе.
type OrderEvent struct {
	Type          string              `json:"type"`
	OrderID       string              `json:"order_id"`
	CustomerID    string              `json:"customer_id"`
	Status        model.OrderStatus   `json:"status"`
	PaymentMode   model.PaymentMode   `json:"payment_mode"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	Total         string              `json:"total"`
	Currency      string              `json:"currency"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher пишет события в топик заказов. Публикация не влияет на исход
// операции: ошибки только логируются.
type Publisher struct {
	writer  messageWriter
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewPublisher создаёт издателя для списка брокеров через запятую.
// Пустой список даёт издателя, который ничего не отправляет.
func NewPublisher(brokers string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}

	p := &Publisher{
		logger:  logger,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	if len(addrs) == 0 {
		return p
	}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  TopicOrders,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return p
}

// OrderPlaced сообщает о новом заказе.
func (p *Publisher) OrderPlaced(ctx context.Context, order *model.Order) {
	p.publish(ctx, p.event(TypeOrderPlaced, order))
}

// OrderStatusChanged сообщает о смене статуса заказа.
func (p *Publisher) OrderStatusChanged(ctx context.Context, order *model.Order) {
	p.publish(ctx, p.event(TypeOrderStatusChanged, order))
}

// PaymentStatusChanged сообщает о смене статуса оплаты.
func (p *Publisher) PaymentStatusChanged(ctx context.Context, order *model.Order) {
	p.publish(ctx, p.event(TypePaymentChanged, order))
}

// Close закрывает соединение с брокерами.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Publisher) event(kind string, order *model.Order) OrderEvent {
	return OrderEvent{
		Type:          kind,
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Status:        order.Status,
		PaymentMode:   order.PaymentMode,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total.StringFixed(2),
		Currency:      order.Currency,
		OccurredAt:    p.now().UTC(),
	}
}

func (p *Publisher) publish(ctx context.Context, ev OrderEvent) {
	if p == nil || p.writer == nil {
		return
	}

	if err := p.write(ctx, ev); err != nil {
		p.logger.Error("Failed to publish order event",
			zap.String("type", ev.Type),
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("Order event published",
		zap.String("type", ev.Type),
		zap.String("order_id", ev.OrderID),
	)
}

func (p *Publisher) write(ctx context.Context, ev OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
