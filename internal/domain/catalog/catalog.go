package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountryLookup maps a canonical country code to its stable integer ID. IDs are
// small monotonic integers assigned lazily by the registry and are the stable
// cross-system key; codes are the human-readable key. Rows are never deleted.
type CountryLookup struct {
	ID   int    `json:"id"`
	Code string `json:"code"` // canonical, unique (ISO alpha-2 where resolvable)
	Name string `json:"name"`
}

// ServiceLookup is the service-side counterpart of CountryLookup.
type ServiceLookup struct {
	ID   int    `json:"id"`
	Code string `json:"code"` // canonical slug, unique
	Name string `json:"name"`
}

// ProviderCountry is one vendor's view of a country. Raw vendor identifiers
// live only here; everything downstream speaks canonical codes and IDs.
// Uniqueness is on (VendorID, ExternalID).
type ProviderCountry struct {
	VendorID      uuid.UUID  `json:"vendor_id"`
	ExternalID    string     `json:"external_id"`
	CanonicalCode string     `json:"canonical_code"`
	CanonicalName string     `json:"canonical_name"`
	FlagURL       string     `json:"flag_url,omitempty"`
	IsActive      bool       `json:"is_active"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

// ProviderService is one vendor's view of a service.
type ProviderService struct {
	VendorID      uuid.UUID  `json:"vendor_id"`
	ExternalID    string     `json:"external_id"`
	CanonicalCode string     `json:"canonical_code"`
	CanonicalName string     `json:"canonical_name"`
	IconURL       string     `json:"icon_url,omitempty"`
	IsActive      bool       `json:"is_active"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

// Same reports whether the incoming row carries any change worth writing. The
// synchronizer skips writes for unchanged rows so an idempotent resync touches
// nothing.
func (p ProviderCountry) Same(other ProviderCountry) bool {
	return p.CanonicalCode == other.CanonicalCode &&
		p.CanonicalName == other.CanonicalName &&
		p.FlagURL == other.FlagURL &&
		p.IsActive == other.IsActive
}

func (p ProviderService) Same(other ProviderService) bool {
	return p.CanonicalCode == other.CanonicalCode &&
		p.CanonicalName == other.CanonicalName &&
		p.IconURL == other.IconURL &&
		p.IsActive == other.IsActive
}

// PriceRow is one priced (country, service, operator) tuple as returned by a
// vendor's price listing, already normalized to canonical codes.
type PriceRow struct {
	CountryCode string          `json:"country_code"`
	ServiceCode string          `json:"service_code"`
	Operator    string          `json:"operator"`
	RawPrice    decimal.Decimal `json:"raw_price"`
	Count       int             `json:"count"`
}

// Country is the adapter's normalized country listing element.
type Country struct {
	ExternalID string `json:"external_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	ISO2       string `json:"iso2,omitempty"`
	FlagURL    string `json:"flag_url,omitempty"`
}

// Service is the adapter's normalized service listing element.
type Service struct {
	ExternalID string `json:"external_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	IconURL    string `json:"icon_url,omitempty"`
}

// ActivationState describes where a purchased number is in its lifecycle.
type ActivationState string

const (
	ActivationWaiting   ActivationState = "waiting"
	ActivationReceived  ActivationState = "received"
	ActivationCancelled ActivationState = "cancelled"
	ActivationCompleted ActivationState = "completed"
	ActivationExpired   ActivationState = "expired"
)

// Terminal reports whether the state admits no further SMS.
func (s ActivationState) Terminal() bool {
	switch s {
	case ActivationCancelled, ActivationCompleted, ActivationExpired:
		return true
	default:
		return false
	}
}

// ActivationStatus is the result of a status poll.
type ActivationStatus struct {
	State    ActivationState `json:"state"`
	Messages []string        `json:"messages,omitempty"`
}

// BuyResult is the adapter-level result of a purchase, before the router
// prefixes the activation ID with the vendor slug.
type BuyResult struct {
	ActivationID string          `json:"activation_id"` // raw vendor activation ID
	PhoneNumber  string          `json:"phone_number"`
	SellPrice    decimal.Decimal `json:"sell_price"`
}
