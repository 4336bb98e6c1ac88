package routing

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/service/health"
)

// Quote is the public projection of one ranked vendor for a (country, service)
// pair. Admin knobs never leave the process: the weight and multiplier feed the
// score but are not part of this struct.
type Quote struct {
	Rank               int             `json:"rank"`
	Vendor             string          `json:"vendor"`
	DisplayName        string          `json:"display_name"`
	Price              decimal.Decimal `json:"price"` // points, 2 dp
	Stock              int             `json:"stock"`
	Reliability        string          `json:"reliability"` // High or Medium
	EstimatedLatencyMs int64           `json:"estimated_latency_ms"`
}

const (
	reliabilityHigh      = "High"
	reliabilityMedium    = "Medium"
	reliabilityThreshold = 0.8
)

// Quotes returns ranked purchase options for a canonical (country, service)
// pair, served from the offer index and cached briefly. Vendors without stock
// or with an open circuit are excluded.
func (r *Router) Quotes(ctx context.Context, countryCode, serviceCode string) ([]Quote, error) {
	key := cache.QuotePrefix + countryCode + ":" + serviceCode

	var cached []Quote
	if err := r.cache.GetJSON(ctx, key, &cached); err == nil && cached != nil {
		return cached, nil
	}

	candidates, err := r.eligibleCandidates(ctx, countryCode, serviceCode)
	if err != nil {
		return nil, err
	}

	withStock := candidates[:0]
	for _, c := range candidates {
		if c.Offer != nil && c.Offer.Stock > 0 {
			withStock = append(withStock, c)
		}
	}
	rank(withStock)

	quotes := make([]Quote, 0, len(withStock))
	for i, c := range withStock {
		quotes = append(quotes, Quote{
			Rank:               i + 1,
			Vendor:             c.Vendor.Name,
			DisplayName:        c.Vendor.DisplayName,
			Price:              c.Offer.Price,
			Stock:              c.Offer.Stock,
			Reliability:        reliabilityTier(c.Health),
			EstimatedLatencyMs: c.Health.AvgLatency.Milliseconds(),
		})
	}

	ttl := r.quoteTTL
	if ttl <= 0 {
		ttl = cache.QuoteTTL
	}
	if err := r.cache.SetJSON(ctx, key, quotes, ttl); err != nil {
		r.logger.Warn("quote cache write failed", zap.Error(err))
	}
	return quotes, nil
}

func reliabilityTier(h health.VendorHealth) string {
	if h.SuccessRate > reliabilityThreshold {
		return reliabilityHigh
	}
	return reliabilityMedium
}
