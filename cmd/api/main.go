package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/api/rest"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/database"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/rates"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/repository"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/search"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/telemetry"
	"github.com/FlashTheFire/nexnum-backend/internal/metrics"
	"github.com/FlashTheFire/nexnum-backend/internal/service/health"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
	"github.com/FlashTheFire/nexnum-backend/internal/service/registry"
	"github.com/FlashTheFire/nexnum-backend/internal/service/routing"
	syncsvc "github.com/FlashTheFire/nexnum-backend/internal/service/sync"
)

func main() {
	cfg, err := config.Load(os.Getenv("NEXNUM_CONFIG"))
	if err != nil {
		panic(err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.InitTracing(ctx, &telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer tracing.Shutdown(context.Background())

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}
	redisCache := cache.NewRedisCache(redisClient, logger)
	defer redisCache.Close()

	index, err := search.NewHTTPIndex(&cfg.Search, logger)
	if err != nil {
		logger.Fatal("search index init failed", zap.Error(err))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	metricsReg := metrics.NewRegistry(promRegistry)

	vendorRepo := repository.NewVendorRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	registrySvc := registry.New(catalogRepo, logger)

	icons := provider.NewIconResolver(cfg.Sync.IconDir, "/static/icons")
	factory := provider.NewFactory(registrySvc, icons, logger)

	monitor := health.NewMonitor(redisClient, cfg.Health, metricsReg, logger)
	audit := telemetry.NewAuditLogger(logger)

	router := routing.NewRouter(vendorRepo, redisCache, factory, monitor, index,
		metricsReg, audit, logger,
		cfg.Routing.ActiveVendorTTL, cfg.Routing.QuoteTTL)

	rateSource := rates.NewHTTPSource(&cfg.Rates, logger)
	syncService := syncsvc.NewService(vendorRepo, catalogRepo, registrySvc, factory,
		index, rateSource, rateSource, redisCache, icons, metricsReg, audit, logger,
		cfg.Sync, cfg.Search.BatchSize)
	runner := syncsvc.NewRunner(syncService, cfg.Sync.WorkerBinary, logger)

	scheduler := syncsvc.NewScheduler(syncService, runner, cfg.Sync, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}
	defer scheduler.Stop()

	handler := rest.NewHandler(router, syncService, runner, monitor, vendorRepo, logger)
	server := rest.NewServer(cfg.Server, handler, redisClient, promRegistry, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
