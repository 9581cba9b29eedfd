package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appevent "github.com/erp/inventory-ledger/internal/application/event"
	inventoryapp "github.com/erp/inventory-ledger/internal/application/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/cache"
	"github.com/erp/inventory-ledger/internal/infrastructure/config"
	"github.com/erp/inventory-ledger/internal/infrastructure/event"
	"github.com/erp/inventory-ledger/internal/infrastructure/logger"
	"github.com/erp/inventory-ledger/internal/infrastructure/persistence"
	"github.com/erp/inventory-ledger/internal/infrastructure/scheduler"
	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/erp/inventory-ledger/internal/interfaces/http/handler"
	"github.com/erp/inventory-ledger/internal/interfaces/http/middleware"
	"github.com/erp/inventory-ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers are no-ops unless telemetry is enabled
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = providers.Shutdown(context.Background())
	}()

	log := telemetry.NewBridgedLogger(baseLog, providers.Logs, cfg.Telemetry.ServiceName)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting inventory ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database, persistence.DatabaseOptions{
		Logger:        log,
		LogLevel:      cfg.Log.Level,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		Tracing: telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		},
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories and the transaction scope that writes the outbox
	serializer := event.NewLedgerSerializer()
	txScope := persistence.NewGormTransactionScope(db.DB, serializer).
		WithLockTimeout(cfg.Ledger.LockTimeout)
	stockLineRepo := persistence.NewGormStockLineRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	stockCountRepo := persistence.NewGormStockCountRepository(db.DB)
	cycleCountRepo := persistence.NewGormCycleCountRepository(db.DB)
	adjustmentRepo := persistence.NewGormAdjustmentRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Application services
	ledgerService := inventoryapp.NewLedgerService(txScope, stockLineRepo, movementRepo, log)
	reservationService := inventoryapp.NewReservationService(txScope, reservationRepo, log)
	reservationService.SetDefaultTTL(cfg.Ledger.DefaultReservationTTL)
	stockCountService := inventoryapp.NewStockCountService(txScope, stockCountRepo, log)
	cycleCountService := inventoryapp.NewCycleCountService(txScope, cycleCountRepo, log)
	adjustmentService := inventoryapp.NewAdjustmentService(txScope, adjustmentRepo, log)
	outboxService := appevent.NewOutboxService(outboxRepo, log)

	// HTTP metrics stay off unless telemetry is enabled
	var meter metric.Meter
	if cfg.Telemetry.Enabled {
		meter = providers.Meters.Meter(cfg.Telemetry.ServiceName)
		ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:                 meter,
			Logger:                log,
			Provider:              persistence.NewLedgerStateProvider(db),
			LowAvailableThreshold: cfg.Ledger.LowAvailableThreshold,
		})
		if err != nil {
			log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
		}
		ledgerService.SetLedgerMetrics(ledgerMetrics)
		stockCountService.SetLedgerMetrics(ledgerMetrics)
		cycleCountService.SetLedgerMetrics(ledgerMetrics)
		adjustmentService.SetLedgerMetrics(ledgerMetrics)
		ledgerMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer ledgerMetrics.Stop()
	}

	// Event bus and its consumers
	eventBus := event.NewInMemoryEventBus(log)
	var alertHandler shared.EventHandler = inventoryapp.NewStockAlertHandler(cfg.Ledger.LowAvailableThreshold, log).
		WithNotifier(inventoryapp.NewLoggingStockAlertNotifier(log))
	if cfg.Event.IdempotencyEnabled {
		store, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).
			Create(ctx, cfg.Event.IdempotencyStore)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		idemCfg := event.DefaultIdempotencyConfig()
		idemCfg.TTL = cfg.Event.IdempotencyTTL
		alertHandler = event.NewIdempotentHandler(alertHandler, store, log,
			event.WithIdempotencyConfig(idemCfg), event.WithConsumerName("stock-alert"))
	}
	eventBus.Subscribe(alertHandler, alertHandler.EventTypes()...)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		_ = eventBus.Stop(context.Background())
	}()

	outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, event.OutboxProcessorConfig{
		BatchSize:        cfg.Event.BatchSize,
		PollInterval:     cfg.Event.PollInterval,
		CleanupEnabled:   cfg.Event.CleanupEnabled,
		CleanupRetention: cfg.Event.CleanupRetention,
		CleanupInterval:  cfg.Event.CleanupInterval,
	}, log)
	if cfg.Event.ProcessorEnabled {
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = outboxProcessor.Stop(stopCtx)
		}()
	}

	// Reservation expiry sweep
	expiryService := inventoryapp.NewReservationExpirationService(
		reservationRepo, reservationService, cfg.Ledger.ExpirySweepBatchSize, log,
	)
	expiryConfig := scheduler.DefaultReservationExpirySchedulerConfig()
	expiryConfig.Enabled = cfg.Ledger.ExpirySweepEnabled
	expiryConfig.Interval = cfg.Ledger.ExpirySweepInterval
	expiryScheduler, err := scheduler.NewReservationExpiryScheduler(expiryService, log, expiryConfig)
	if err != nil {
		log.Fatal("Failed to create reservation expiry scheduler", zap.Error(err))
	}
	if err := expiryScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start reservation expiry scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = expiryScheduler.Stop(stopCtx)
	}()

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           cors,
		Meter:          meter,
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)
	router.NewRouter(engine, router.WithTenantMiddleware(middleware.TenantContext())).
		Register(handler.NewLedgerHandler(ledgerService)).
		Register(handler.NewReservationHandler(reservationService)).
		Register(handler.NewStockCountHandler(stockCountService)).
		Register(handler.NewCycleCountHandler(cycleCountService)).
		Register(handler.NewAdjustmentHandler(adjustmentService)).
		RegisterSystem(systemHandler).
		RegisterSystem(handler.NewOutboxHandler(outboxService)).
		Setup()
	engine.GET("/health", systemHandler.Health)
	engine.NoRoute(systemHandler.NoRoute)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
