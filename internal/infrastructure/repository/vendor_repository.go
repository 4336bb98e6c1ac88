package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domainerrors "github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

// vendorRepository implements VendorRepository using PostgreSQL.
type vendorRepository struct {
	db *pgxpool.Pool
}

// NewVendorRepository creates a new vendor repository.
func NewVendorRepository(db *pgxpool.Pool) VendorRepository {
	return &vendorRepository{db: db}
}

const vendorColumns = `
	id, name, display_name, is_active, api_key, priority, weight,
	price_multiplier, fixed_markup, currency, deposit_currency,
	normalization_mode, normalization_rate, deposit_spent, deposit_received,
	use_global_sync, balance, balance_threshold,
	sync_status, sync_count, last_sync_at, last_metadata_sync_at,
	mapping, created_at, updated_at`

func (r *vendorRepository) GetByName(ctx context.Context, name string) (*vendor.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE name = $1`

	v, err := scanVendor(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.NewNotFoundError("vendor").
				WithDetails(map[string]interface{}{"name": name})
		}
		return nil, fmt.Errorf("failed to get vendor %q: %w", name, err)
	}
	return v, nil
}

func (r *vendorRepository) List(ctx context.Context) ([]*vendor.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors ORDER BY priority ASC, name ASC`
	return r.queryVendors(ctx, query)
}

func (r *vendorRepository) ListActive(ctx context.Context) ([]*vendor.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE is_active ORDER BY priority ASC, name ASC`
	return r.queryVendors(ctx, query)
}

func (r *vendorRepository) queryVendors(ctx context.Context, query string, args ...interface{}) ([]*vendor.Vendor, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []*vendor.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (r *vendorRepository) SetSyncStatus(ctx context.Context, id uuid.UUID, status vendor.SyncStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE vendors SET sync_status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.NewNotFoundError("vendor")
	}
	return nil
}

func (r *vendorRepository) FinishSync(ctx context.Context, id uuid.UUID, status vendor.SyncStatus, metadataSynced bool) error {
	query := `
		UPDATE vendors SET
			sync_status = $2,
			sync_count = sync_count + 1,
			last_sync_at = now(),
			last_metadata_sync_at = CASE WHEN $3 THEN now() ELSE last_metadata_sync_at END,
			updated_at = now()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, string(status), metadataSynced)
	if err != nil {
		return fmt.Errorf("failed to finish sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.NewNotFoundError("vendor")
	}
	return nil
}

func (r *vendorRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	_, err := r.db.Exec(ctx,
		`UPDATE vendors SET balance = $2, updated_at = now() WHERE id = $1`,
		id, balance)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// scanVendor maps one row onto the Vendor entity. The mapping document is
// stored as JSONB.
func scanVendor(row pgx.Row) (*vendor.Vendor, error) {
	var (
		v           vendor.Vendor
		mode        string
		status      string
		mappingJSON []byte
	)
	err := row.Scan(
		&v.ID, &v.Name, &v.DisplayName, &v.IsActive, &v.APIKey, &v.Priority, &v.Weight,
		&v.PriceMultiplier, &v.FixedMarkup, &v.Currency, &v.DepositCurrency,
		&mode, &v.NormalizationRate, &v.DepositSpent, &v.DepositReceived,
		&v.UseGlobalSync, &v.Balance, &v.BalanceThreshold,
		&status, &v.SyncCount, &v.LastSyncAt, &v.LastMetadataSyncAt,
		&mappingJSON, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.NormalizationMode = vendor.NormalizationMode(mode)
	v.SyncStatus = vendor.SyncStatus(status)
	if len(mappingJSON) > 0 {
		if err := json.Unmarshal(mappingJSON, &v.Mapping); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mapping for %s: %w", v.Name, err)
		}
	}
	return &v, nil
}
