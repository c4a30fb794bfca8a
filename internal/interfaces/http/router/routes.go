package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rouna/storefront/internal/infrastructure/logger"
	"github.com/rouna/storefront/internal/interfaces/http/handler"
	"github.com/rouna/storefront/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// EngineConfig configures the middleware every request passes through
type EngineConfig struct {
	Logger         *zap.Logger
	CORS           middleware.CORSConfig
	Tracing        middleware.TracingConfig
	Metrics        gin.HandlerFunc // nil disables HTTP metrics
	Profiling      bool
	MaxBodySize    int64
	TrustedProxies []string
}

// NewEngine creates a gin engine with the global middleware chain:
// request ID, tracing, metrics, profiling labels, logging, recovery, CORS,
// security headers and the body size limit.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(middleware.RequestID(), middleware.TracingWithConfig(cfg.Tracing))
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics)
	}
	engine.Use(
		middleware.Profiling(cfg.Profiling),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.Secure(),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	return engine, nil
}

// Handlers groups the storefront handlers and the auth middleware they sit
// behind
type Handlers struct {
	Cart   *handler.CartHandler
	Orders *handler.OrderHandler
	System *handler.SystemHandler

	// Auth authenticates the bearer token; required
	Auth gin.HandlerFunc
	// CheckoutLimit throttles order placement; nil disables it
	CheckoutLimit gin.HandlerFunc
}

// Register wires every storefront route onto engine
func Register(engine *gin.Engine, h Handlers) {
	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	admin := middleware.RequireAdmin()

	cart := NewDomainGroup("cart", "/cart").
		Use(h.Auth, middleware.SpanAttributes()).
		GET("", h.Cart.Get).
		DELETE("", h.Cart.Clear).
		POST("/sync", h.Cart.Sync).
		POST("/merge", h.Cart.Merge).
		PUT("/lines/:index", h.Cart.UpdateLine).
		DELETE("/lines/:index", h.Cart.RemoveLine)

	guest := NewDomainGroup("guest-carts", "/guest-carts").
		GET("/:token", h.Cart.GetGuest).
		PUT("/:token", h.Cart.PutGuest)

	orders := NewDomainGroup("orders", "/orders").
		Use(h.Auth, middleware.SpanAttributes()).
		POST("", h.CheckoutLimit, h.Orders.Checkout).
		GET("", admin, h.Orders.ListAll).
		GET("/my-orders", h.Orders.ListMine).
		GET("/stats", admin, h.Orders.Stats).
		GET("/:id", h.Orders.Get).
		GET("/:id/receipt", h.Orders.Receipt).
		POST("/:id/cancel", h.Orders.Cancel).
		PATCH("/:id/status", admin, h.Orders.UpdateStatus)

	lines := NewDomainGroup("order-lines", "/order-lines").
		Use(h.Auth, middleware.SpanAttributes()).
		POST("/:id/return", h.Orders.RequestReturn).
		POST("/:id/return/approve", admin, h.Orders.ApproveReturn).
		POST("/:id/return/reject", admin, h.Orders.RejectReturn).
		POST("/:id/return/complete", admin, h.Orders.CompleteReturn)

	NewRouter(engine).Register(cart, guest, orders, lines).Setup()
	engine.GET("/api/v1/health", h.System.Health)
}
