// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultCurrency          = "INR"
	defaultCheckoutRetention = 30 * time.Minute
)

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	CatalogAddress string `env:"CATALOG_ADDRESS"`
	RedisAddress   string `env:"REDIS_ADDRESS"`
	KafkaBrokers   string `env:"KAFKA_BROKERS"`

	AuthSecret string `env:"AUTH_SECRET"`
	AdminToken string `env:"ADMIN_TOKEN"`

	RazorpayKeyID     string `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `env:"RAZORPAY_KEY_SECRET"`

	Currency          string          `env:"CURRENCY"`
	DeliveryFee       decimal.Decimal `env:"DELIVERY_FEE"`
	PackagingFee      decimal.Decimal `env:"PACKAGING_FEE"`
	CheckoutRetention time.Duration   `env:"CHECKOUT_RETENTION"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.CatalogAddress, "c", "", "catalog service address")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for carts")
	flag.StringVar(&cfg.KafkaBrokers, "k", "", "comma-separated kafka brokers for order events")
	flag.StringVar(&cfg.Currency, "currency", defaultCurrency, "order currency")
	flag.TextVar(&cfg.DeliveryFee, "delivery-fee", decimal.Zero, "flat delivery fee")
	flag.TextVar(&cfg.PackagingFee, "packaging-fee", decimal.Zero, "flat packaging fee")
	flag.DurationVar(&cfg.CheckoutRetention, "checkout-retention", defaultCheckoutRetention,
		"how long finished checkouts are kept in memory")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DeliveryFee.IsNegative() {
		return fmt.Errorf("delivery fee must not be negative: %s", c.DeliveryFee)
	}
	if c.PackagingFee.IsNegative() {
		return fmt.Errorf("packaging fee must not be negative: %s", c.PackagingFee)
	}
	if c.CheckoutRetention <= 0 {
		return fmt.Errorf("checkout retention must be positive: %s", c.CheckoutRetention)
	}
	return nil
}
