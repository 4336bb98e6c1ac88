package provider

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

// BuyRequest carries the vendor-native identifiers for a purchase. The router
// fills it from the selected offer; external IDs are the vendor's own, never
// canonical codes.
type BuyRequest struct {
	CountryExternalID string
	ServiceExternalID string
	Operator          string
	MaxPrice          decimal.Decimal
}

// Client is the uniform surface every vendor integration exposes. One client is
// bound to one vendor and its captured mapping; all methods classify failures
// into vendor.ProviderError.
type Client interface {
	// ListCountries fetches and canonicalizes the vendor's country catalog.
	ListCountries(ctx context.Context) ([]catalog.Country, error)

	// ListServices fetches the service catalog. When the vendor's endpoint
	// requires a country and none is given, the client falls back through "",
	// "us" and the first known country.
	ListServices(ctx context.Context, countryCode string) ([]catalog.Service, error)

	// ListPrices fetches priced (service, operator) rows for one country. Rows
	// with non-positive stock are dropped.
	ListPrices(ctx context.Context, country catalog.Country) ([]catalog.PriceRow, error)

	// Buy purchases a number. The returned activation ID is the vendor's raw
	// one; the router adds the vendor prefix.
	Buy(ctx context.Context, req BuyRequest) (*catalog.BuyResult, error)

	// Status polls an activation. Terminal states are returned as-is; the
	// caller decides whether a terminal state without messages is an error.
	Status(ctx context.Context, activationID string) (*catalog.ActivationStatus, error)

	Cancel(ctx context.Context, activationID string) error
	Resend(ctx context.Context, activationID string) error
	Complete(ctx context.Context, activationID string) error

	// GetBalance returns the vendor account balance in its native currency.
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

// Factory builds a Client for a vendor. The production factory wraps
// NewAdapter; tests substitute fakes.
type Factory func(v *vendor.Vendor) (Client, error)
