package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
)

// operatorAssigner hands out monotonic per-run IDs for vendor operator names,
// so operators are comparable within a run without a global registry.
type operatorAssigner struct {
	next int
	ids  map[string]int
}

func newOperatorAssigner() *operatorAssigner {
	return &operatorAssigner{next: 1, ids: make(map[string]int)}
}

func (o *operatorAssigner) id(externalOperator string) int {
	if id, ok := o.ids[externalOperator]; ok {
		return id
	}
	id := o.next
	o.next++
	o.ids[externalOperator] = id
	return id
}

// catalogIndex resolves canonical codes to the vendor's stored catalog rows and
// their stable lookup IDs.
type catalogIndex struct {
	countries map[string]catalog.ProviderCountry // canonical code -> row
	services  map[string]catalog.ProviderService
	countryID map[string]int // canonical code -> stable lookup ID
	serviceID map[string]int
}

// buildOffers turns priced rows into offer documents. Rows that reference a
// country or service absent from the vendor's catalog are dropped: every offer
// must resolve in the lookups.
func (s *Service) buildOffers(
	v *vendor.Vendor,
	calc provider.Calculator,
	rows []catalog.PriceRow,
	idx *catalogIndex,
	now time.Time,
) []catalog.Offer {
	operators := newOperatorAssigner()
	offers := make([]catalog.Offer, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		// Sold-out rows, and rows whose mapping never produced a count, stay
		// out of the index.
		if row.Count <= 0 {
			continue
		}
		country, ok := idx.countries[row.CountryCode]
		if !ok || !country.IsActive {
			continue
		}
		service, ok := idx.services[row.ServiceCode]
		if !ok || !service.IsActive {
			continue
		}

		price, err := calc.SellPrice(v, row.RawPrice)
		if err != nil {
			s.logger.Warn("skipping unpriceable row",
				zap.String("vendor", v.Name),
				zap.String("country", row.CountryCode),
				zap.String("service", row.ServiceCode),
				zap.Error(err))
			continue
		}

		id := catalog.OfferID(v.Name, row.CountryCode, row.ServiceCode, row.Operator)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		operators.id(row.Operator)

		offers = append(offers, catalog.Offer{
			ID:                  id,
			Vendor:              v.Name,
			ProviderCountryCode: row.CountryCode,
			CountryID:           idx.countryID[row.CountryCode],
			CountryName:         country.CanonicalName,
			CountryIcon:         country.FlagURL,
			ProviderServiceCode: row.ServiceCode,
			ServiceID:           idx.serviceID[row.ServiceCode],
			ServiceName:         service.CanonicalName,
			ServiceIcon:         service.IconURL,
			ExternalCountryID:   country.ExternalID,
			ExternalServiceID:   service.ExternalID,
			Operator:            row.Operator,
			Price:               price.SellPoints(),
			RawPrice:            price.RawCost(),
			Stock:               row.Count,
			LastSyncedAt:        now,
			IsActive:            true,
		})
	}
	return offers
}

// publishOffers replaces the vendor's documents in the index: delete by vendor
// filter, then bulk-add in chunks. The cancellation check sits before the
// delete so an aborted run never leaves the vendor's slice of the index empty.
func (s *Service) publishOffers(ctx context.Context, vendorName string, offers []catalog.Offer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.index.DeleteByVendor(ctx, vendorName); err != nil {
		return err
	}

	batch := s.batchSize
	if batch <= 0 {
		batch = 5000
	}
	for start := 0; start < len(offers); start += batch {
		end := start + batch
		if end > len(offers) {
			end = len(offers)
		}
		if err := s.index.UpsertOffers(ctx, offers[start:end]); err != nil {
			return err
		}
	}
	return nil
}
