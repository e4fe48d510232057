// Package main запускает HTTP-сервер витрины доставки еды.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/foodcart/internal/cartstore"
	"github.com/mmeshcher/foodcart/internal/catalog"
	"github.com/mmeshcher/foodcart/internal/config"
	"github.com/mmeshcher/foodcart/internal/events"
	"github.com/mmeshcher/foodcart/internal/handler"
	"github.com/mmeshcher/foodcart/internal/middleware"
	"github.com/mmeshcher/foodcart/internal/payment"
	"github.com/mmeshcher/foodcart/internal/repository"
	"github.com/mmeshcher/foodcart/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	redisClient, err := cartstore.Connect(ctx, cfg.RedisAddress)
	if err != nil {
		sugar.Fatalw("redis initialization error", "error", err.Error())
	}
	defer redisClient.Close()

	if cfg.CatalogAddress == "" {
		sugar.Warn("catalog address is not set, products cannot be added to carts")
	}
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		sugar.Warn("razorpay credentials are not set, online payments will fail")
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, logger)
	defer publisher.Close()

	svc := service.NewService(
		repo,
		cartstore.NewRedisStore(redisClient),
		catalog.NewClient(cfg.CatalogAddress),
		payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger),
		publisher,
		service.Config{
			DeliveryFee:       cfg.DeliveryFee,
			PackagingFee:      cfg.PackagingFee,
			Currency:          cfg.Currency,
			CheckoutRetention: cfg.CheckoutRetention,
		},
		logger,
	)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.AdminToken)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Очистка завершённых попыток оформления
	g.Go(func() error {
		svc.StartCheckoutJanitor(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting foodcart server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
