// The syncer runs one vendor's catalog sync and exits. The API process spawns
// it per vendor so a misbehaving vendor integration is contained in its own
// process; it can also be run by hand for on-demand syncs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/database"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/rates"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/repository"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/search"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/telemetry"
	"github.com/FlashTheFire/nexnum-backend/internal/metrics"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
	"github.com/FlashTheFire/nexnum-backend/internal/service/registry"
	syncsvc "github.com/FlashTheFire/nexnum-backend/internal/service/sync"
)

func main() {
	vendorName := flag.String("vendor", "", "vendor slug to sync")
	flag.Parse()

	if *vendorName == "" {
		fmt.Fprintln(os.Stderr, "usage: syncer --vendor <slug>")
		os.Exit(2)
	}

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

	metricsReg := metrics.NewRegistry(prometheus.NewRegistry())
	vendorRepo := repository.NewVendorRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	registrySvc := registry.New(catalogRepo, logger)
	icons := provider.NewIconResolver(cfg.Sync.IconDir, "/static/icons")
	factory := provider.NewFactory(registrySvc, icons, logger)
	audit := telemetry.NewAuditLogger(logger)
	rateSource := rates.NewHTTPSource(&cfg.Rates, logger)

	svc := syncsvc.NewService(vendorRepo, catalogRepo, registrySvc, factory,
		index, rateSource, rateSource, redisCache, icons, metricsReg, audit, logger,
		cfg.Sync, cfg.Search.BatchSize)

	stats, err := svc.SyncVendor(ctx, *vendorName)
	if err != nil {
		logger.Error("sync failed", zap.String("vendor", *vendorName), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("sync finished",
		zap.String("vendor", stats.Vendor),
		zap.Int("offers", stats.OffersPublished),
		zap.Duration("elapsed", stats.Elapsed))
}
