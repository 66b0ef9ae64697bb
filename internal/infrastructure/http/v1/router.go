// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"kassa/internal/core/security"
	"kassa/internal/domain/product"
	"kassa/internal/domain/sale"
	"kassa/internal/domain/stock"
	"kassa/internal/infrastructure/http/v1/handlers"
	"kassa/internal/infrastructure/http/v1/middleware"
	"kassa/internal/infrastructure/storage/postgres"
	"kassa/internal/realtime"
	"kassa/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	JWTValidator middleware.JWTValidator
	Policies     *security.PolicyEngine

	SaleService  *sale.Service
	StockService *stock.Service
	ProductRepo  product.Repository
	Hub          *realtime.Hub
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Hub)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	authorize := func(resource, action string) gin.HandlerFunc {
		return middleware.Authorize(cfg.Policies, resource, action)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1 - everything behind JWT
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	{
		saleHandler := handlers.NewSaleHandler(baseHandler, cfg.SaleService)
		saleHandler.RegisterRoutes(api.Group("/sales"), authorize)

		stockHandler := handlers.NewStockHandler(baseHandler, cfg.StockService, cfg.ProductRepo)
		stockHandler.RegisterRoutes(api.Group("/stock"), authorize)

		productHandler := handlers.NewProductHandler(baseHandler, cfg.ProductRepo)
		productHandler.RegisterRoutes(api.Group("/products"), authorize)
	}

	// WebSocket subscription shares the auth middleware; browser clients pass
	// the token as a query parameter.
	ws := router.Group("/ws")
	ws.Use(middleware.Auth(cfg.JWTValidator))
	{
		wsHandler := handlers.NewWSHandler(baseHandler, cfg.Hub)
		wsHandler.RegisterRoutes(ws, authorize)
	}

	return router
}
