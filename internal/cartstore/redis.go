// Package cartstore хранит корзины покупателей в Redis между запросами.
package cartstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/foodcart/internal/cart"
)

const defaultTTL = 7 * 24 * time.Hour

// RedisStore сохраняет сериализованную корзину под ключом cart:<customerID>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore создаёт хранилище корзин поверх клиента Redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    defaultTTL,
	}
}

// Connect создаёт клиента Redis по адресу и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Load возвращает корзину покупателя. Для отсутствующего ключа возвращается пустая корзина.
// Повреждённые данные тоже дают пустую корзину вместе с cart.ErrCorruptLedger.
func (s *RedisStore) Load(ctx context.Context, customerID string) (*cart.Ledger, error) {
	data, err := s.client.Get(ctx, key(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	return cart.Decode(data)
}

// Save сохраняет корзину и продлевает срок её хранения.
func (s *RedisStore) Save(ctx context.Context, customerID string, l *cart.Ledger) error {
	data, err := cart.Encode(l)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key(customerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete удаляет корзину покупателя.
func (s *RedisStore) Delete(ctx context.Context, customerID string) error {
	if err := s.client.Del(ctx, key(customerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func key(customerID string) string {
	return fmt.Sprintf("cart:%s", customerID)
}
