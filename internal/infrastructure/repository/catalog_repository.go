package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
)

// catalogRepository implements CatalogRepository using PostgreSQL.
type catalogRepository struct {
	db *pgxpool.Pool
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{db: db}
}

// EnsureCountryLookup upserts the canonical row and returns its stable ID. The
// serial column guarantees monotonic assignment; ON CONFLICT keeps the first
// ID forever.
func (r *catalogRepository) EnsureCountryLookup(ctx context.Context, code, name string) (catalog.CountryLookup, error) {
	query := `
		INSERT INTO country_lookups (code, name)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, code, name`

	var lookup catalog.CountryLookup
	if err := r.db.QueryRow(ctx, query, code, name).Scan(&lookup.ID, &lookup.Code, &lookup.Name); err != nil {
		return catalog.CountryLookup{}, fmt.Errorf("failed to ensure country lookup %q: %w", code, err)
	}
	return lookup, nil
}

func (r *catalogRepository) EnsureServiceLookup(ctx context.Context, code, name string) (catalog.ServiceLookup, error) {
	query := `
		INSERT INTO service_lookups (code, name)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, code, name`

	var lookup catalog.ServiceLookup
	if err := r.db.QueryRow(ctx, query, code, name).Scan(&lookup.ID, &lookup.Code, &lookup.Name); err != nil {
		return catalog.ServiceLookup{}, fmt.Errorf("failed to ensure service lookup %q: %w", code, err)
	}
	return lookup, nil
}

func (r *catalogRepository) UpsertProviderCountry(ctx context.Context, row catalog.ProviderCountry) error {
	query := `
		INSERT INTO provider_countries (
			vendor_id, external_id, canonical_code, canonical_name,
			flag_url, is_active, last_sync_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (vendor_id, external_id) DO UPDATE SET
			canonical_code = EXCLUDED.canonical_code,
			canonical_name = EXCLUDED.canonical_name,
			flag_url = EXCLUDED.flag_url,
			is_active = EXCLUDED.is_active,
			last_sync_at = now()`

	_, err := r.db.Exec(ctx, query,
		row.VendorID, row.ExternalID, row.CanonicalCode, row.CanonicalName,
		row.FlagURL, row.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert provider country %s/%s: %w",
			row.VendorID, row.ExternalID, err)
	}
	return nil
}

func (r *catalogRepository) UpsertProviderService(ctx context.Context, row catalog.ProviderService) error {
	query := `
		INSERT INTO provider_services (
			vendor_id, external_id, canonical_code, canonical_name,
			icon_url, is_active, last_sync_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (vendor_id, external_id) DO UPDATE SET
			canonical_code = EXCLUDED.canonical_code,
			canonical_name = EXCLUDED.canonical_name,
			icon_url = EXCLUDED.icon_url,
			is_active = EXCLUDED.is_active,
			last_sync_at = now()`

	_, err := r.db.Exec(ctx, query,
		row.VendorID, row.ExternalID, row.CanonicalCode, row.CanonicalName,
		row.IconURL, row.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert provider service %s/%s: %w",
			row.VendorID, row.ExternalID, err)
	}
	return nil
}

func (r *catalogRepository) ListProviderCountries(ctx context.Context, vendorID uuid.UUID) ([]catalog.ProviderCountry, error) {
	query := `
		SELECT vendor_id, external_id, canonical_code, canonical_name,
			flag_url, is_active, last_sync_at
		FROM provider_countries
		WHERE vendor_id = $1
		ORDER BY canonical_code`

	rows, err := r.db.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider countries: %w", err)
	}
	defer rows.Close()

	var result []catalog.ProviderCountry
	for rows.Next() {
		var row catalog.ProviderCountry
		if err := rows.Scan(&row.VendorID, &row.ExternalID, &row.CanonicalCode,
			&row.CanonicalName, &row.FlagURL, &row.IsActive, &row.LastSyncAt); err != nil {
			return nil, fmt.Errorf("failed to scan provider country: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *catalogRepository) ListProviderServices(ctx context.Context, vendorID uuid.UUID) ([]catalog.ProviderService, error) {
	query := `
		SELECT vendor_id, external_id, canonical_code, canonical_name,
			icon_url, is_active, last_sync_at
		FROM provider_services
		WHERE vendor_id = $1
		ORDER BY canonical_code`

	rows, err := r.db.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider services: %w", err)
	}
	defer rows.Close()

	var result []catalog.ProviderService
	for rows.Next() {
		var row catalog.ProviderService
		if err := rows.Scan(&row.VendorID, &row.ExternalID, &row.CanonicalCode,
			&row.CanonicalName, &row.IconURL, &row.IsActive, &row.LastSyncAt); err != nil {
			return nil, fmt.Errorf("failed to scan provider service: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
