package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Offer is one searchable (vendor, country, service, operator) tuple with its
// current sell price and stock. Offers are written only by the synchronizer and
// read by the router; the index upserts them by primary key.
type Offer struct {
	ID                  string          `json:"id"`
	Vendor              string          `json:"vendor"`
	ProviderCountryCode string          `json:"providerCountryCode"`
	CountryID           int             `json:"countryId"`
	CountryName         string          `json:"countryName"`
	CountryIcon         string          `json:"countryIcon,omitempty"`
	ProviderServiceCode string          `json:"providerServiceCode"`
	ServiceID           int             `json:"serviceId"`
	ServiceName         string          `json:"serviceName"`
	ServiceIcon         string          `json:"serviceIcon,omitempty"`
	// Vendor-native identifiers, carried so a purchase can be placed straight
	// from the offer without re-resolving canonical codes.
	ExternalCountryID string `json:"externalCountryId"`
	ExternalServiceID string `json:"externalServiceId"`

	Operator            string          `json:"operator"`
	Price               decimal.Decimal `json:"price"`    // sell price in points, 2 dp
	RawPrice            decimal.Decimal `json:"rawPrice"` // vendor native price
	Stock               int             `json:"stock"`
	LastSyncedAt        time.Time       `json:"lastSyncedAt"`
	IsActive            bool            `json:"isActive"`
}

// OfferID builds the index primary key: lower(vendor_country_service_operator)
// with every character outside [a-z0-9_] stripped.
func OfferID(vendor, countryCode, serviceCode, operator string) string {
	raw := strings.ToLower(vendor + "_" + countryCode + "_" + serviceCode + "_" + operator)
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
