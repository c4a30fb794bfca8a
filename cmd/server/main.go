package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appcart "github.com/rouna/storefront/internal/application/cart"
	apporder "github.com/rouna/storefront/internal/application/order"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/infrastructure/auth"
	"github.com/rouna/storefront/internal/infrastructure/cache"
	"github.com/rouna/storefront/internal/infrastructure/config"
	"github.com/rouna/storefront/internal/infrastructure/event"
	"github.com/rouna/storefront/internal/infrastructure/logger"
	"github.com/rouna/storefront/internal/infrastructure/persistence"
	"github.com/rouna/storefront/internal/infrastructure/printing"
	"github.com/rouna/storefront/internal/infrastructure/storage"
	"github.com/rouna/storefront/internal/infrastructure/telemetry"
	"github.com/rouna/storefront/internal/interfaces/http/handler"
	"github.com/rouna/storefront/internal/interfaces/http/middleware"
	"github.com/rouna/storefront/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry: traces, metrics, logs and profiles
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdown(log, "tracer provider", tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdown(log, "meter provider", mp.Shutdown)

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer shutdown(log, "logger provider", lp.Shutdown)
	if lp.IsEnabled() {
		log = telemetry.NewBridgedLogger(log, lp, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:            cfg.Telemetry.ProfilingEnabled,
		ServerAddress:      cfg.Telemetry.PyroscopeAddress,
		ApplicationName:    cfg.Telemetry.ServiceName,
		ProfileAllocations: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tp.EnableSpanProfiles()
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithParameterizedQueries(cfg.App.IsProduction()))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if _, err := telemetry.RegisterDBPoolMetrics(mp.Meter("storefront.db"), db.PoolStats); err != nil {
		log.Fatal("Failed to register database pool metrics", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Guest carts and checkout keys; production refuses to run without Redis
	stores, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	).Create(ctx)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache stores", zap.Error(err))
		}
	}()

	// Repositories
	itemRepo := persistence.NewGormItemRepository(db.DB)
	cartRepo := persistence.NewGormCartRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	lineRepo := persistence.NewGormOrderLineRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Domain events are logged once per event ID
	serializer := event.NewEventSerializer()
	event.RegisterOrderEvents(serializer)
	eventBus := event.NewInMemoryEventBus(log)
	orderLog := event.NewOrderLogHandler(serializer, log)
	eventBus.Subscribe(event.NewIdempotentHandler(orderLog, stores.Idempotency, log), orderLog.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer shutdown(log, "event bus", eventBus.Stop)

	checkoutMetrics, err := telemetry.NewCheckoutMetrics(mp.Meter("storefront.checkout"))
	if err != nil {
		log.Fatal("Failed to create checkout metrics", zap.Error(err))
	}

	orderOpts := []apporder.Option{
		apporder.WithCartClearer(cartRepo),
		apporder.WithIdempotencyStore(stores.Idempotency, cfg.Checkout.IdempotencyTTL),
		apporder.WithEventPublisher(eventBus),
		apporder.WithMetrics(checkoutMetrics),
	}
	if cfg.Receipt.Enabled {
		renderer, closeRenderer, err := newReceiptRenderer(ctx, cfg, log)
		if err != nil {
			log.Fatal("Failed to initialize receipt renderer", zap.Error(err))
		}
		defer closeRenderer()
		orderOpts = append(orderOpts, apporder.WithReceiptRenderer(renderer))
	}

	// Application services
	cartService := appcart.NewCartService(cartRepo, itemRepo, stores.GuestCarts, log)
	orderService := apporder.NewOrderService(txScope, orderRepo, lineRepo, orderRepo, log, orderOpts...)

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(mp.Meter("http.server"))
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger: log,
		CORS:   cors,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics:        httpMetrics,
		Profiling:      profiler.IsEnabled(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if stores.Client != nil {
		checks["redis"] = func(ctx context.Context) error { return stores.Client.Ping(ctx).Err() }
	}

	base := handler.BaseHandler{ExposeErrors: !cfg.App.IsProduction()}
	handlers := router.Handlers{
		Cart:   handler.NewCartHandler(cartService, base),
		Orders: handler.NewOrderHandler(orderService, base),
		System: handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, checks),
		Auth:   middleware.JWTAuthMiddleware(auth.NewJWTService(cfg.JWT), log),
	}
	if cfg.Checkout.RateLimitEnabled {
		limiter := middleware.NewKeyedLimiter(cfg.Checkout.RatePerMinute, cfg.Checkout.Burst)
		handlers.CheckoutLimit = middleware.RateLimitByKey(limiter, middleware.UserKey)
	}
	router.Register(engine, handlers)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newReceiptRenderer builds the HTML template, the Chrome converter and,
// when storage is configured and archiving enabled, the S3 archive.
func newReceiptRenderer(ctx context.Context, cfg *config.Config, log *zap.Logger) (order.ReceiptRenderer, func(), error) {
	tmpl, err := printing.NewReceiptTemplate()
	if err != nil {
		return nil, nil, err
	}
	converter := printing.NewChromedpRenderer(printing.ChromedpConfig{
		Timeout:   cfg.Receipt.Timeout,
		RemoteURL: cfg.Receipt.ChromeURL,
		NoSandbox: true,
		Logger:    log,
	})
	closeFn := func() {
		if err := converter.Close(); err != nil {
			log.Error("Error closing receipt converter", zap.Error(err))
		}
	}

	opts := []printing.ReceiptRendererOption{printing.WithRendererLogger(log)}
	if cfg.Receipt.Archive && cfg.Storage.Configured() {
		archive, err := storage.NewS3ObjectStorage(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Receipt bucket check failed, archiving may fail", zap.Error(err))
		}
		opts = append(opts, printing.WithArchive(archive))
	}
	return printing.NewReceiptRenderer(tmpl, converter, opts...), closeFn, nil
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}
