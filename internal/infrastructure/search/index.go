package search

import (
	"context"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
)

// Index is the narrow contract the core consumes from the offer search index.
// The synchronizer is the only writer; the router only reads.
type Index interface {
	// UpsertOffers adds or replaces documents by primary key.
	UpsertOffers(ctx context.Context, offers []catalog.Offer) error

	// DeleteByVendor removes every offer document belonging to one vendor.
	DeleteByVendor(ctx context.Context, vendorName string) error

	// SwapShadow atomically swaps a shadow index into place.
	SwapShadow(ctx context.Context, shadowName string) error

	// SearchOffers returns active offers for a canonical (country, service)
	// pair.
	SearchOffers(ctx context.Context, countryCode, serviceCode string) ([]catalog.Offer, error)
}
