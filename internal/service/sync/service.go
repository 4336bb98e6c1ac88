package sync

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/rates"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/repository"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/search"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/telemetry"
	"github.com/FlashTheFire/nexnum-backend/internal/metrics"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
	"github.com/FlashTheFire/nexnum-backend/internal/service/registry"
)

// serviceAggregatesKey caches the cross-vendor service summary the catalog API
// serves between syncs.
const serviceAggregatesKey = "nexnum:catalog:services"

// RunStats summarizes one vendor sync.
type RunStats struct {
	Vendor          string        `json:"vendor"`
	CountriesSynced int           `json:"countries_synced"`
	ServicesSynced  int           `json:"services_synced"`
	MetadataWrites  int           `json:"metadata_writes"`
	MetadataReused  bool          `json:"metadata_reused"`
	PriceRows       int           `json:"price_rows"`
	FailedCountries int           `json:"failed_countries"`
	OffersPublished int           `json:"offers_published"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Service is the catalog synchronizer: it keeps per-vendor catalog rows and the
// offer index consistent with each vendor's live inventory.
type Service struct {
	vendors  repository.VendorRepository
	catalog  repository.CatalogRepository
	registry *registry.Service
	factory  provider.Factory
	index    search.Index
	rates    rates.Source
	settings rates.SettingsSource
	cache    cache.Cache
	icons    *IconReconciler
	resolver *provider.IconResolver
	metrics  *metrics.Registry
	audit    telemetry.AuditLogger
	logger   *zap.Logger

	cfg       config.SyncConfig
	batchSize int
}

// NewService builds the synchronizer.
func NewService(
	vendors repository.VendorRepository,
	cat repository.CatalogRepository,
	reg *registry.Service,
	factory provider.Factory,
	index search.Index,
	rateSource rates.Source,
	settings rates.SettingsSource,
	c cache.Cache,
	resolver *provider.IconResolver,
	metricsReg *metrics.Registry,
	audit telemetry.AuditLogger,
	logger *zap.Logger,
	cfg config.SyncConfig,
	searchBatchSize int,
) *Service {
	return &Service{
		vendors:   vendors,
		catalog:   cat,
		registry:  reg,
		factory:   factory,
		index:     index,
		rates:     rateSource,
		settings:  settings,
		cache:     c,
		icons:     NewIconReconciler(cfg.IconDir, logger),
		resolver:  resolver,
		metrics:   metricsReg,
		audit:     audit,
		logger:    logger,
		cfg:       cfg,
		batchSize: searchBatchSize,
	}
}

// SyncVendor runs the full per-vendor sequence. A distributed lock guarantees
// one run per vendor at a time across processes.
func (s *Service) SyncVendor(ctx context.Context, vendorName string) (*RunStats, error) {
	v, err := s.vendors.GetByName(ctx, vendorName)
	if err != nil {
		return nil, err
	}
	if err := v.Mapping.Validate(); err != nil {
		return nil, err
	}

	lockKey := cache.SyncLockPrefix + v.Name
	acquired, err := s.cache.SetNX(ctx, lockKey, time.Now().Format(time.RFC3339), cache.SyncLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !acquired {
		return nil, errors.NewConflictError(
			fmt.Sprintf("sync already running for vendor %s", v.Name))
	}
	defer func() {
		if err := s.cache.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.Warn("sync lock release failed", zap.String("vendor", v.Name), zap.Error(err))
		}
	}()

	start := time.Now()
	if err := s.vendors.SetSyncStatus(ctx, v.ID, vendor.SyncStatusSyncing); err != nil {
		return nil, err
	}

	stats, runErr := s.run(ctx, v)
	status := vendor.SyncStatusSuccess
	if runErr != nil {
		status = vendor.SyncStatusFailed
	}
	metadataSynced := runErr == nil && stats != nil && !stats.MetadataReused

	if err := s.vendors.FinishSync(context.WithoutCancel(ctx), v.ID, status, metadataSynced); err != nil {
		s.logger.Error("sync status update failed", zap.String("vendor", v.Name), zap.Error(err))
	}

	elapsed := time.Since(start)
	s.metrics.SyncRuns.WithLabelValues(v.Name, string(status)).Inc()
	s.metrics.SyncDuration.WithLabelValues(v.Name).Observe(elapsed.Seconds())

	if runErr != nil {
		s.logger.Error("vendor sync failed",
			zap.String("vendor", v.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(runErr))
		return nil, runErr
	}

	stats.Elapsed = elapsed
	s.metrics.OffersIndexed.WithLabelValues(v.Name).Set(float64(stats.OffersPublished))
	s.audit.Log("vendor_sync", map[string]interface{}{
		"vendor":           v.Name,
		"offers":           stats.OffersPublished,
		"price_rows":       stats.PriceRows,
		"failed_countries": stats.FailedCountries,
		"metadata_reused":  stats.MetadataReused,
		"elapsed_ms":       elapsed.Milliseconds(),
	})
	s.logger.Info("vendor sync finished",
		zap.String("vendor", v.Name),
		zap.Int("offers", stats.OffersPublished),
		zap.Duration("elapsed", elapsed))
	return stats, nil
}

func (s *Service) run(ctx context.Context, v *vendor.Vendor) (*RunStats, error) {
	stats := &RunStats{Vendor: v.Name}

	client, err := s.factory(v)
	if err != nil {
		return nil, err
	}

	calc, err := s.calculator(ctx)
	if err != nil {
		return nil, err
	}

	// Balance is bookkeeping, not a gate.
	if v.Mapping.Supports(vendor.OpGetBalance) {
		if balance, err := client.GetBalance(ctx); err != nil {
			s.logger.Warn("balance fetch failed during sync",
				zap.String("vendor", v.Name), zap.Error(err))
		} else if err := s.vendors.UpdateBalance(ctx, v.ID, balance); err != nil {
			s.logger.Warn("balance persist failed", zap.String("vendor", v.Name), zap.Error(err))
		}
	}

	idx, err := s.syncMetadata(ctx, v, client, stats)
	if err != nil {
		return nil, err
	}

	countries := make([]catalog.Country, 0, len(idx.countries))
	for _, row := range idx.countries {
		if row.IsActive {
			countries = append(countries, catalog.Country{
				ExternalID: row.ExternalID,
				Code:       row.CanonicalCode,
				Name:       row.CanonicalName,
				FlagURL:    row.FlagURL,
			})
		}
	}

	var rows []catalog.PriceRow
	if v.UseGlobalSync {
		rows, err = client.ListPrices(ctx, catalog.Country{})
		if err != nil {
			return nil, err
		}
	} else {
		rows, stats.FailedCountries, err = fanOutPrices(ctx, client, countries,
			s.cfg.MaxInFlight, s.cfg.RequestsPerMinute, s.logger)
		if err != nil {
			return nil, err
		}
	}
	stats.PriceRows = len(rows)

	offers := s.buildOffers(v, calc, rows, idx, time.Now())
	if err := s.publishOffers(ctx, v.Name, offers); err != nil {
		return nil, err
	}
	stats.OffersPublished = len(offers)
	return stats, nil
}

// syncMetadata applies the freshness rule, then smart-upserts the catalog and
// returns the resolved index of stored rows with their stable lookup IDs.
func (s *Service) syncMetadata(ctx context.Context, v *vendor.Vendor, client provider.Client, stats *RunStats) (*catalogIndex, error) {
	storedCountries, err := s.catalog.ListProviderCountries(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	storedServices, err := s.catalog.ListProviderServices(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	reuse := len(storedCountries) > 0 &&
		v.MetadataFresh(s.cfg.MetadataMaxAge, time.Now()) &&
		!hasPlaceholderCountry(storedCountries) &&
		!hasPlaceholderService(storedServices)
	stats.MetadataReused = reuse

	if !reuse {
		countries, err := client.ListCountries(ctx)
		if err != nil {
			return nil, err
		}
		services, err := client.ListServices(ctx, "")
		if err != nil {
			return nil, err
		}
		writes, err := s.upsertCatalog(ctx, v, countries, services, storedCountries, storedServices)
		if err != nil {
			return nil, err
		}
		stats.MetadataWrites = writes

		if storedCountries, err = s.catalog.ListProviderCountries(ctx, v.ID); err != nil {
			return nil, err
		}
		if storedServices, err = s.catalog.ListProviderServices(ctx, v.ID); err != nil {
			return nil, err
		}
	}
	stats.CountriesSynced = len(storedCountries)
	stats.ServicesSynced = len(storedServices)

	idx := &catalogIndex{
		countries: make(map[string]catalog.ProviderCountry, len(storedCountries)),
		services:  make(map[string]catalog.ProviderService, len(storedServices)),
		countryID: make(map[string]int, len(storedCountries)),
		serviceID: make(map[string]int, len(storedServices)),
	}
	for _, row := range storedCountries {
		idx.countries[row.CanonicalCode] = row
		lookup, err := s.registry.EnsureCountry(ctx, row.CanonicalCode, row.CanonicalName)
		if err != nil {
			return nil, err
		}
		idx.countryID[row.CanonicalCode] = lookup.ID
	}
	for _, row := range storedServices {
		idx.services[row.CanonicalCode] = row
		lookup, err := s.registry.EnsureService(ctx, row.CanonicalCode, row.CanonicalName)
		if err != nil {
			return nil, err
		}
		idx.serviceID[row.CanonicalCode] = lookup.ID
	}
	return idx, nil
}

// upsertCatalog writes only rows that actually changed, so an idempotent
// resync touches nothing.
func (s *Service) upsertCatalog(
	ctx context.Context,
	v *vendor.Vendor,
	countries []catalog.Country,
	services []catalog.Service,
	storedCountries []catalog.ProviderCountry,
	storedServices []catalog.ProviderService,
) (int, error) {
	existingCountries := make(map[string]catalog.ProviderCountry, len(storedCountries))
	for _, row := range storedCountries {
		existingCountries[row.ExternalID] = row
	}
	existingServices := make(map[string]catalog.ProviderService, len(storedServices))
	for _, row := range storedServices {
		existingServices[row.ExternalID] = row
	}

	writes := 0
	for _, c := range countries {
		incoming := catalog.ProviderCountry{
			VendorID:      v.ID,
			ExternalID:    c.ExternalID,
			CanonicalCode: c.Code,
			CanonicalName: c.Name,
			FlagURL:       s.resolver.CountryFlag(c.Code, c.FlagURL),
			IsActive:      true,
		}
		if existing, ok := existingCountries[c.ExternalID]; ok && existing.Same(incoming) {
			continue
		}
		if err := s.catalog.UpsertProviderCountry(ctx, incoming); err != nil {
			return writes, err
		}
		writes++
	}

	for _, svc := range services {
		incoming := catalog.ProviderService{
			VendorID:      v.ID,
			ExternalID:    svc.ExternalID,
			CanonicalCode: svc.Code,
			CanonicalName: svc.Name,
			IconURL:       s.resolver.ServiceIcon(svc.Code, svc.IconURL),
			IsActive:      true,
		}
		if existing, ok := existingServices[svc.ExternalID]; ok && existing.Same(incoming) {
			continue
		}
		if err := s.catalog.UpsertProviderService(ctx, incoming); err != nil {
			return writes, err
		}
		writes++
	}
	return writes, nil
}

// calculator snapshots exchange rates and the points rate for one run.
func (s *Service) calculator(ctx context.Context) (provider.Calculator, error) {
	rateTable, err := s.rates.GetExchangeRates(ctx)
	if err != nil {
		return provider.Calculator{}, fmt.Errorf("fetching exchange rates: %w", err)
	}
	settings, err := s.settings.GetSystemSettings(ctx)
	if err != nil {
		return provider.Calculator{}, fmt.Errorf("fetching system settings: %w", err)
	}
	return provider.NewCalculator(rateTable, settings.PointsRate)
}

// SyncAll runs every syncable vendor in parallel, then refreshes the service
// aggregates and reconciles icons. One vendor failing does not block others.
func (s *Service) SyncAll(ctx context.Context, runner Runner) error {
	vendors, err := s.vendors.ListActive(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range vendors {
		if s.cfg.Vendor != "" && v.Name != s.cfg.Vendor {
			continue
		}
		name := v.Name
		g.Go(func() error {
			if err := runner.Run(gctx, name); err != nil {
				s.logger.Error("vendor sync worker failed",
					zap.String("vendor", name), zap.Error(err))
			}
			// Worker failures are isolated; the group only fails on
			// cancellation.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.refreshAggregates(ctx, vendors)
	s.reconcileIcons(ctx, vendors)
	return nil
}

// refreshAggregates recomputes the cross-vendor service summary served by the
// public catalog endpoints.
func (s *Service) refreshAggregates(ctx context.Context, vendors []*vendor.Vendor) {
	type aggregate struct {
		Code        string `json:"code"`
		Name        string `json:"name"`
		Icon        string `json:"icon,omitempty"`
		VendorCount int    `json:"vendor_count"`
	}
	byCode := make(map[string]*aggregate)

	for _, v := range vendors {
		services, err := s.catalog.ListProviderServices(ctx, v.ID)
		if err != nil {
			s.logger.Warn("aggregate refresh skipped vendor",
				zap.String("vendor", v.Name), zap.Error(err))
			continue
		}
		for _, svc := range services {
			if !svc.IsActive {
				continue
			}
			agg, ok := byCode[svc.CanonicalCode]
			if !ok {
				agg = &aggregate{Code: svc.CanonicalCode, Name: svc.CanonicalName, Icon: svc.IconURL}
				byCode[svc.CanonicalCode] = agg
			}
			agg.VendorCount++
		}
	}

	aggregates := make([]*aggregate, 0, len(byCode))
	for _, agg := range byCode {
		aggregates = append(aggregates, agg)
	}
	if err := s.cache.SetJSON(ctx, serviceAggregatesKey, aggregates, 0); err != nil {
		s.logger.Warn("aggregate cache write failed", zap.Error(err))
	}
}

func (s *Service) reconcileIcons(ctx context.Context, vendors []*vendor.Vendor) {
	var all []catalog.ProviderService
	for _, v := range vendors {
		services, err := s.catalog.ListProviderServices(ctx, v.ID)
		if err != nil {
			continue
		}
		all = append(all, services...)
	}
	s.icons.Reconcile(ctx, all)
}

func hasPlaceholderCountry(rows []catalog.ProviderCountry) bool {
	for _, row := range rows {
		if placeholderName(row.CanonicalName, row.ExternalID) {
			return true
		}
	}
	return false
}

func hasPlaceholderService(rows []catalog.ProviderService) bool {
	for _, row := range rows {
		if placeholderName(row.CanonicalName, row.ExternalID) {
			return true
		}
	}
	return false
}

// placeholderName detects rows whose display name never resolved: empty,
// identical to the vendor's raw ID, or purely numeric.
func placeholderName(name, externalID string) bool {
	if name == "" || name == externalID {
		return true
	}
	for _, r := range name {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
