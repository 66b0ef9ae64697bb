// Package main is the entry point for the kassa API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kassa/internal/core/security"
	"kassa/internal/domain/auth"
	"kassa/internal/domain/sale"
	"kassa/internal/domain/stock"
	v1 "kassa/internal/infrastructure/http/v1"
	"kassa/internal/infrastructure/storage/postgres"
	"kassa/internal/realtime"
	"kassa/pkg/logger"
	"kassa/pkg/numerator"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting kassa server")

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- JWT ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Authorization policies ---
	policies, err := security.NewDefaultPolicyEngine()
	if err != nil {
		log.Fatalw("failed to compile authorization policies", "error", err)
	}

	// --- Infrastructure ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}
	outbox := postgres.NewOutboxPublisher(txManager)
	hub := realtime.NewHub()

	// --- Repositories ---
	stockRepo := postgres.NewStockRepo(txManager)
	saleRepo := postgres.NewSaleRepo(txManager)
	productRepo := postgres.NewProductRepo(txManager)

	// --- Domain services ---
	stockService := stock.NewService(stockRepo, txManager, hub, auditService)
	saleService := sale.NewService(
		saleRepo,
		productRepo,
		stockService,
		numerator.NewWithTxManager(txManager),
		txManager,
		hub,
		outbox,
		auditService,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		Policies:     policies,
		SaleService:  saleService,
		StockService: stockService,
		ProductRepo:  productRepo,
		Hub:          hub,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
