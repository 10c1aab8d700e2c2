package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	batchapp "github.com/immoflow/backend/internal/application/batch"
	billingapp "github.com/immoflow/backend/internal/application/billing"
	dunningapp "github.com/immoflow/backend/internal/application/dunning"
	jobsapp "github.com/immoflow/backend/internal/application/jobs"
	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	settlementapp "github.com/immoflow/backend/internal/application/settlement"
	"github.com/immoflow/backend/internal/infrastructure/cache"
	"github.com/immoflow/backend/internal/infrastructure/config"
	"github.com/immoflow/backend/internal/infrastructure/logger"
	"github.com/immoflow/backend/internal/infrastructure/persistence"
	"github.com/immoflow/backend/internal/infrastructure/telemetry"
	"github.com/immoflow/backend/internal/infrastructure/worker"
	"github.com/immoflow/backend/internal/interfaces/http/handler"
	"github.com/immoflow/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting immoflow backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracing, err := telemetry.NewProvider(context.Background(), telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		Endpoint:      cfg.Telemetry.Endpoint,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
		Insecure:      cfg.Telemetry.Insecure,
	}, cfg.App.Name, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.Telemetry.Enabled {
		if err := telemetry.TraceDatabase(db.DB); err != nil {
			log.Fatal("failed to enable database tracing", zap.Error(err))
		}
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()
	log.Info("database connected")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		_ = redisClient.Close()
	}()

	// The saldo cache and the import idempotency guard degrade gracefully:
	// without Redis, saldi are recomputed per request and import replays
	// fall back to an in-process guard.
	var saldoCache ledgerapp.SaldoCache
	var idempotency cache.IdempotencyStore
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, using in-process fallbacks", zap.Error(err))
		memStore := cache.NewInMemoryIdempotencyStore()
		defer memStore.Close()
		idempotency = memStore
	} else {
		saldoCache = cache.NewSaldoCache(redisClient, 5*time.Minute)
		idempotency = cache.NewRedisIdempotencyStoreWithClient(redisClient, "")
		log.Info("redis connected")
	}
	cancelPing()

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	lockRepo := persistence.NewGormPeriodLockRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)
	caseRepo := persistence.NewGormDunningCaseRepository(db.DB)
	runRepo := persistence.NewGormSettlementRunRepository(db.DB)
	distEntryRepo := persistence.NewGormDistributionEntryRepository(db.DB)
	jobRepo := persistence.NewGormJobRepository(db.DB)
	importRunRepo := persistence.NewGormImportRunRepository(db.DB)
	transactor := persistence.NewGormTransactor(db.DB)

	// Application services
	ledgerSvc := ledgerapp.NewLedgerService(entryRepo, auditRepo, saldoCache, log)
	allocationSvc := billingapp.NewAllocationService(invoiceRepo, paymentRepo, allocationRepo, lockRepo, caseRepo, ledgerSvc, transactor, log)
	periodSvc := billingapp.NewPeriodService(lockRepo, ledgerSvc, log)
	dunningSvc := dunningapp.NewDunningService(invoiceRepo, caseRepo, ledgerSvc, log)
	settlementSvc := settlementapp.NewSettlementService(runRepo, distEntryRepo, lockRepo, ledgerSvc, log)
	bulkUpsertSvc := batchapp.NewBulkUpsertService(invoiceRepo, importRunRepo, idempotency, ledgerSvc, transactor, log)
	varianceSvc := batchapp.NewVarianceService(invoiceRepo, allocationRepo, log)
	jobSvc := jobsapp.NewJobService(jobRepo, log)

	// Background job processor
	processor := worker.NewProcessor(jobRepo, worker.Config{
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: cfg.Worker.PollInterval,
		JobTimeout:   cfg.Worker.JobTimeout,
	}, log)
	processor.Register(jobsapp.NewDunningRunHandler(dunningSvc, log))
	processor.Register(jobsapp.NewBulkUpsertHandler(bulkUpsertSvc, log))
	processor.Register(jobsapp.NewSettlementRunHandler(settlementSvc, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Worker.Enabled {
		if err := processor.Start(ctx); err != nil {
			log.Fatal("failed to start job processor", zap.Error(err))
		}
	} else {
		log.Info("job processor disabled by configuration")
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	routerOpts := []router.Option{router.WithBodyLimit(cfg.HTTP.MaxBodySize)}
	if cfg.Telemetry.Enabled {
		routerOpts = append(routerOpts, router.WithTracing(cfg.App.Name))
	}
	engine := router.New(log, routerOpts...).
		Register(
			handler.NewPaymentHandler(allocationSvc, ledgerSvc),
			handler.NewPeriodHandler(periodSvc),
			handler.NewDunningHandler(dunningSvc, jobSvc),
			handler.NewSettlementHandler(settlementSvc),
			handler.NewBatchHandler(bulkUpsertSvc, varianceSvc, jobSvc),
			handler.NewAuditHandler(ledgerSvc),
			handler.NewJobHandler(jobSvc),
		).
		Setup()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("invalid trusted proxy configuration", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	if cfg.Worker.Enabled {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Error("job processor shutdown failed", zap.Error(err))
		}
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", zap.Error(err))
	}

	log.Info("stopped")
}
