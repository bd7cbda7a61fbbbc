// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"blockmarket/internal/config"
	ethgas "blockmarket/internal/ethgas/service"
	marketrepository "blockmarket/internal/market/repository"
	marketservice "blockmarket/internal/market/service"
	markethttp "blockmarket/internal/market/transport/http"
	"blockmarket/internal/metrics"
	orderrepository "blockmarket/internal/order/repository"
	orderservice "blockmarket/internal/order/service"
	orderhttp "blockmarket/internal/order/transport/http"
	userrepository "blockmarket/internal/user/repository"
	userservice "blockmarket/internal/user/service"
	userhttp "blockmarket/internal/user/transport/http"
	"blockmarket/pkg/crypto"
	"blockmarket/pkg/db"
	"blockmarket/pkg/logger"
	"blockmarket/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.Development())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	os.Exit(finish(logg, run(cfg, logg)))
}

// finish логирует ошибку запуска, сбрасывает буфер логгера и возвращает код выхода.
// os.Exit не выполняет defer, поэтому Sync вызывается здесь.
func finish(logg *zap.Logger, err error) int {
	if err != nil {
		logg.Error("server exited", zap.Error(err))
	}
	_ = logg.Sync()
	if err != nil {
		return 1
	}
	return 0
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()
	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logg.Info("database connected")

	metrics.InitMetrics()

	cipher, err := crypto.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		return err
	}
	exchange := ethgas.NewClient(cfg.EthgasAPIURL, cfg.EthgasTimeout, logg)

	// --- ИНИЦИАЛИЗАЦИЯ СЛОЁВ ---
	userRepo := userrepository.NewPostgresUserRepository(database)
	userService := userservice.NewUserService(userRepo, exchange, cipher, logg)
	userHandler := userhttp.NewHandler(userService, cfg.JWTSecret, logg)

	orderRepo := orderrepository.NewPostgresOrderRepository(database)
	engine := orderservice.NewEngine(orderRepo, exchange, userService,
		orderservice.NewAccountResolver(cfg.TradingAccountType), logg)
	orderHandler := orderhttp.NewOrderHandler(engine, logg)
	poller := orderservice.NewPoller(orderRepo, engine, cfg.SyncInterval, cfg.SyncConcurrency, logg)

	snapshotRepo := marketrepository.NewPostgresSnapshotRepository(database)
	marketService := marketservice.NewService(snapshotRepo, exchange, cfg.MarketCacheTTL, logg)
	marketHandler := markethttp.NewMarketHandler(marketService, logg)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, logg)
	go limiter.RunCleanup(time.Minute, ctx.Done())
	go poller.Run(ctx)

	// --- РОУТЕР ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.MetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(mr chi.Router) {
		if cfg.MetricsUser != "" {
			mr.Use(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPassword))
		}
		mr.Handle("/metrics", promhttp.Handler())
	})

	r.Group(func(api chi.Router) {
		api.Use(limiter.Middleware)
		api.Use(middleware.ValidateRequest)

		api.Post("/auth/login", userHandler.Login)
		api.Post("/auth/verify", userHandler.Verify)

		api.Get("/market/wholeblock", marketHandler.Wholeblock)
		api.Get("/market/preconf", marketHandler.Preconf)
		api.Get("/market/trades", marketHandler.Trades)

		api.Group(func(pr chi.Router) {
			pr.Use(middleware.JWTAuth(cfg.JWTSecret))
			pr.Get("/auth/me", userHandler.Me)
			pr.Post("/orders/place", orderHandler.PlaceOrder)
			pr.Get("/orders/my", orderHandler.MyOrders)
			pr.Post("/orders/cancel", orderHandler.CancelOrder)
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("server listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("shutdown signal received, starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logg.Info("server stopped")
	return nil
}
