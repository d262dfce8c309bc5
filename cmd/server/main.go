package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	orderapp "github.com/intlshop/backend/internal/application/order"
	paymentapp "github.com/intlshop/backend/internal/application/payment"
	pricingapp "github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/auth"
	"github.com/intlshop/backend/internal/infrastructure/cache"
	"github.com/intlshop/backend/internal/infrastructure/config"
	"github.com/intlshop/backend/internal/infrastructure/fx"
	"github.com/intlshop/backend/internal/infrastructure/logger"
	"github.com/intlshop/backend/internal/infrastructure/migration"
	paymentinfra "github.com/intlshop/backend/internal/infrastructure/payment"
	"github.com/intlshop/backend/internal/infrastructure/persistence"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
	"github.com/intlshop/backend/internal/infrastructure/scheduler"
	"github.com/intlshop/backend/internal/infrastructure/storage"
	"github.com/intlshop/backend/internal/infrastructure/telemetry"
	"github.com/intlshop/backend/internal/interfaces/http/handler"
	"github.com/intlshop/backend/internal/interfaces/http/middleware"
	"github.com/intlshop/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	migrate := flag.Bool("migrate", false, "Apply pending schema migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting shop backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("base_currency", cfg.App.BaseCurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	exportLevel, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		exportLevel = zapcore.InfoLevel
	}
	log = logsProvider.Bridge(log, exportLevel)
	shopMetrics, err := telemetry.NewShopMetrics(meterProvider.Meter("intlshop"))
	if err != nil {
		log.Fatal("Failed to register shop metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database
	db, err := openDatabase(cfg, log, *migrate)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Redis, or in-memory fallbacks
	stores, err := cache.NewFactory(cfg.Redis, cache.WithLogger(log)).Build(ctx)
	if err != nil {
		log.Fatal("Failed to initialize stores", zap.Error(err))
	}

	// Outbound adapters
	paypal, err := paymentinfra.NewPayPalAdapter(
		paymentinfra.NewPayPalConfig(cfg.PayPal, cfg.Payments.WebhookReplayTTL),
		stores.Replay,
		paymentinfra.WithPayPalLogger(log),
	)
	if err != nil {
		log.Fatal("Failed to initialize PayPal adapter", zap.Error(err))
	}

	var feed pricing.FxFeed
	if cfg.FX.ProviderURL != "" {
		httpFeed, err := fx.NewHTTPFeed(cfg.FX, log)
		if err != nil {
			log.Fatal("Failed to initialize FX feed", zap.Error(err))
		}
		feed = httpFeed
	} else {
		log.Warn("fx.provider_url is empty; FX sync is disabled")
		cfg.Scheduler.FXSync.Enabled = false
	}

	attachments, err := attachmentStorage(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize attachment storage", zap.Error(err))
	}

	// Repositories
	clock := shared.SystemClock{}
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	shipmentRepo := persistence.NewGormShipmentRepository(db.DB)
	catalogReader := persistence.NewGormCatalogReader(db.DB)
	currencyRepo := persistence.NewGormCurrencyRepository(db.DB)
	discountRepo := persistence.NewGormDiscountRepository(db.DB)
	fxRateRepo := persistence.NewGormFxRateRepository(db.DB)

	// Application services
	currencyService := pricingapp.NewCurrencyConfigService(pricingapp.CurrencyServiceConfig{
		Repo:   currencyRepo,
		Cache:  stores.Currencies,
		Clock:  clock,
		Logger: log,
	})
	fxService := pricingapp.NewFxRateService(pricingapp.FxServiceConfig{
		Repo:         fxRateRepo,
		Feed:         feed,
		Currencies:   currencyRepo,
		BaseCurrency: cfg.App.BaseCurrency,
		Clock:        clock,
		Logger:       log,
	})
	discountAdmin := pricingapp.NewDiscountAdminService(pricingapp.DiscountAdminConfig{
		Repo:         discountRepo,
		Rates:        fxRateRepo,
		Currencies:   currencyService,
		BaseCurrency: cfg.App.BaseCurrency,
		FxMaxAge:     cfg.FX.MaxAge,
		Clock:        clock,
		Logger:       log,
	})
	discountEngine := pricing.NewEngine(discountRepo, fxService, currencyService, clock, pricing.EngineConfig{
		BaseCurrency: cfg.App.BaseCurrency,
		FxMaxAge:     cfg.FX.MaxAge,
	})
	orderService := orderapp.NewService(orderapp.Config{
		Orders:           orderRepo,
		Skus:             catalogReader,
		Carts:            catalogReader,
		Discounts:        discountEngine,
		Claims:           stores.AddressClaims,
		Attachments:      attachments,
		IDs:              shared.UUIDGenerator{},
		Clock:            clock,
		Metrics:          shopMetrics,
		Logger:           log,
		PaymentTTL:       cfg.Orders.PaymentTTL,
		AddressChangeTTL: cfg.Orders.AddressChangeTTL,
		TimeoutReason:    cfg.Orders.TimeoutCancelReason,
	})
	reconciler := paymentapp.NewReconciler(paymentapp.Config{
		Repo:       paymentRepo,
		Gateway:    paypal,
		Currencies: currencyService,
		Shipments:  shipmentRepo,
		Clock:      clock,
		Metrics:    shopMetrics,
		Logger:     log,
		PaymentTTL: cfg.Orders.PaymentTTL,
		ReturnURL:  cfg.PayPal.ReturnURL,
		CancelURL:  cfg.PayPal.CancelURL,
	})
	adminService := orderapp.NewAdminService(orderapp.AdminConfig{
		Orders:     orderRepo,
		Reader:     orderRepo,
		Payments:   paymentRepo,
		Refunds:    reconciler,
		Currencies: currencyService,
		Claims:     stores.AddressClaims,
		Clock:      clock,
		Logger:     log,
	})

	// Background jobs
	runner := scheduler.NewRunner(scheduler.Config{JobTimeout: cfg.Scheduler.JobTimeout}, log.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		if err := scheduler.RegisterJobs(runner, cfg.Scheduler, scheduler.JobDeps{
			Payments:  reconciler,
			Orders:    orderService,
			FX:        fxService,
			Discounts: discountAdmin,
			Logger:    log,
		}); err != nil {
			log.Fatal("Failed to register jobs", zap.Error(err))
		}
	}

	// HTTP
	engine := newEngine(cfg, log, meterProvider, db, stores, handlers{
		orders:    orderService,
		admin:     adminService,
		payments:  reconciler,
		discounts: discountAdmin,
		fx:        fxService,
	})
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Scheduler.Enabled {
		g.Go(func() error { return runner.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stores.Close(); err != nil {
		log.Warn("Error closing stores", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Warn("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// openDatabase connects with the DB tracing plugin installed. With migrate set,
// PostgreSQL runs the embedded migrations and SQLite is auto-migrated.
func openDatabase(cfg *config.Config, log *zap.Logger, migrate bool) (*persistence.Database, error) {
	var plugins []gorm.Plugin
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracing := telemetry.DefaultDBTracingConfig()
		tracing.Enabled = true
		tracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		if cfg.Database.Driver == "sqlite" {
			tracing.DBSystem = "sqlite"
		}
		plugins = append(plugins, telemetry.NewDBTracingPlugin(tracing, log))
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log.Named("gorm"),
		LogLevel:      logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		Plugins:       plugins,
	})
	if err != nil {
		return nil, err
	}
	if !migrate {
		return db, nil
	}

	if cfg.Database.Driver == "sqlite" {
		if err := db.DB.AutoMigrate(models.All()...); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("SQLite schema auto-migrated")
		return db, nil
	}

	m, err := migration.NewFromURL(cfg.Database.DSN(), log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defer func() { _ = m.Close() }()
	if err := m.Up(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// attachmentStorage returns S3 when storage is enabled and a stub otherwise
func attachmentStorage(cfg *config.Config, log *zap.Logger) (order.AttachmentStorage, error) {
	if !cfg.Storage.Enabled {
		log.Warn("Object storage disabled; refund attachment URLs are placeholders")
		return storage.NewStubAttachmentStorage(), nil
	}
	s3, err := storage.NewS3AttachmentStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return s3, nil
}

type handlers struct {
	orders    handler.OrderService
	admin     handler.AdminOrderService
	payments  *paymentapp.Reconciler
	discounts handler.DiscountAdminService
	fx        handler.FxSyncer
}

func newEngine(
	cfg *config.Config,
	log *zap.Logger,
	meterProvider *telemetry.MeterProvider,
	db *persistence.Database,
	stores *cache.Stores,
	h handlers,
) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{MeterProvider: meterProvider, Logger: log}),
		middleware.Profiling(cfg.Telemetry.ProfilingEnabled),
		middleware.CORSWithConfig(corsConfig),
		middleware.Secure(cfg.App.Env == "production"),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)))
	}

	verifier := auth.NewVerifier(cfg.JWT)
	checks := []handler.HealthCheck{{Name: "database", Probe: db.Ping}, {Name: "redis"}}
	if client := stores.Client(); client != nil {
		checks[1].Probe = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	r := router.NewRouter(engine)
	router.RegisterShopRoutes(r, router.ShopHandlers{
		Orders:      handler.NewOrderHandler(h.orders),
		Payments:    handler.NewPaymentHandler(h.payments),
		Webhook:     handler.NewPayPalWebhookHandler(h.payments),
		AdminOrders: handler.NewAdminOrderHandler(h.admin, h.payments),
		Discounts:   handler.NewDiscountAdminHandler(h.discounts, h.fx),
		Health:      handler.NewHealthHandler(buildVersion(), checks...),
	}, router.ShopAuth{
		User:  middleware.JWTAuth(middleware.JWTMiddlewareConfig{Verifier: verifier, Logger: log}),
		Admin: middleware.RequireAdmin(log),
		After: []gin.HandlerFunc{middleware.SpanAttributes()},
	})
	r.Setup()

	return engine
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
