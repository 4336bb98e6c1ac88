package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

// VendorRepository persists vendor configuration and sync bookkeeping.
type VendorRepository interface {
	GetByName(ctx context.Context, name string) (*vendor.Vendor, error)
	List(ctx context.Context) ([]*vendor.Vendor, error)
	// ListActive returns active vendors ordered by priority ascending.
	ListActive(ctx context.Context) ([]*vendor.Vendor, error)
	SetSyncStatus(ctx context.Context, id uuid.UUID, status vendor.SyncStatus) error
	// FinishSync records the outcome of a run: status, lastSyncAt bump,
	// syncCount increment, and optionally lastMetadataSyncAt.
	FinishSync(ctx context.Context, id uuid.UUID, status vendor.SyncStatus, metadataSynced bool) error
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
}

// CatalogRepository persists canonical lookups and per-vendor catalog rows.
type CatalogRepository interface {
	// EnsureCountryLookup upserts by canonical code and returns the stable
	// integer ID. IDs are monotonic and never reused.
	EnsureCountryLookup(ctx context.Context, code, name string) (catalog.CountryLookup, error)
	EnsureServiceLookup(ctx context.Context, code, name string) (catalog.ServiceLookup, error)

	UpsertProviderCountry(ctx context.Context, row catalog.ProviderCountry) error
	UpsertProviderService(ctx context.Context, row catalog.ProviderService) error
	ListProviderCountries(ctx context.Context, vendorID uuid.UUID) ([]catalog.ProviderCountry, error)
	ListProviderServices(ctx context.Context, vendorID uuid.UUID) ([]catalog.ProviderService, error)
}
