package routing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/repository"
)

// cachedVendor carries the credential alongside the entity; the entity itself
// never serializes its key, but the shared cache is internal and the adapter
// cannot call the vendor without it.
type cachedVendor struct {
	vendor.Vendor
	APIKey string `json:"api_key"`
}

// vendorCache is the read-through active-vendor list: shared cache first, then
// the database, with an in-process copy kept as a stale fallback for when the
// database is down.
type vendorCache struct {
	repo   repository.VendorRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	stale   []*vendor.Vendor
	staleAt time.Time
}

func newVendorCache(repo repository.VendorRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *vendorCache {
	if ttl <= 0 {
		ttl = cache.ActiveVendorTTL
	}
	return &vendorCache{repo: repo, cache: c, ttl: ttl, logger: logger}
}

// Active returns active vendors ordered by priority ascending.
func (vc *vendorCache) Active(ctx context.Context) ([]*vendor.Vendor, error) {
	var cached []cachedVendor
	if err := vc.cache.GetJSON(ctx, cache.ActiveVendorsKey, &cached); err == nil && len(cached) > 0 {
		return vc.restore(cached), nil
	}

	vendors, err := vc.repo.ListActive(ctx)
	if err != nil {
		vc.mu.RLock()
		stale, staleAt := vc.stale, vc.staleAt
		vc.mu.RUnlock()
		if stale != nil {
			vc.logger.Warn("vendor list query failed, serving stale copy",
				zap.Time("stale_at", staleAt), zap.Error(err))
			return stale, nil
		}
		return nil, err
	}

	toCache := make([]cachedVendor, len(vendors))
	for i, v := range vendors {
		toCache[i] = cachedVendor{Vendor: *v, APIKey: v.APIKey}
	}
	if err := vc.cache.SetJSON(ctx, cache.ActiveVendorsKey, toCache, vc.ttl); err != nil {
		vc.logger.Warn("vendor list cache write failed", zap.Error(err))
	}

	vc.mu.Lock()
	vc.stale = vendors
	vc.staleAt = time.Now()
	vc.mu.Unlock()

	return vendors, nil
}

// ByName finds one active vendor by slug.
func (vc *vendorCache) ByName(ctx context.Context, name string) (*vendor.Vendor, error) {
	vendors, err := vc.Active(ctx)
	if err == nil {
		for _, v := range vendors {
			if v.Name == name {
				return v, nil
			}
		}
	}
	return vc.repo.GetByName(ctx, name)
}

// Bust drops the shared cache key; admin mutations call this.
func (vc *vendorCache) Bust(ctx context.Context) {
	if err := vc.cache.Delete(ctx, cache.ActiveVendorsKey); err != nil {
		vc.logger.Warn("vendor cache bust failed", zap.Error(err))
	}
}

func (vc *vendorCache) restore(cached []cachedVendor) []*vendor.Vendor {
	out := make([]*vendor.Vendor, len(cached))
	for i := range cached {
		v := cached[i].Vendor
		v.APIKey = cached[i].APIKey
		out[i] = &v
	}
	return out
}
