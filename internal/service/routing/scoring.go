package routing

import (
	"math"
	"sort"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/service/health"
)

// fallbackSuccessRate is used when the health monitor cannot be reached.
const fallbackSuccessRate = 0.5

// candidate is one vendor under consideration for a purchase or quote.
type candidate struct {
	Vendor *vendor.Vendor
	Health health.VendorHealth
	Offer  *catalog.Offer // cheapest known offer, nil when the index has none
	Score  float64
}

// score ranks a vendor for one (country, service) request:
//
//	score = (successRate * adminWeight * priorityBoost * stockFactor)
//	      / (normalizedDeliveryTime * priceFactor)
//
// priorityBoost rewards low priority numbers, stockFactor grows
// logarithmically with available numbers, and the denominator penalizes slow
// SMS delivery and expensive offers.
func (c *candidate) score() float64 {
	successRate := c.Health.SuccessRate

	weight, _ := c.Vendor.Weight.Float64()
	if weight <= 0 {
		weight = 1
	}

	priority := c.Vendor.Priority
	if priority < 1 {
		priority = 1
	}
	priorityBoost := 1 / float64(priority)

	stockFactor := 0.1
	if c.Offer != nil && c.Offer.Stock > 0 {
		stockFactor = math.Log10(float64(c.Offer.Stock) + 10)
	}

	deliveryMs := float64(c.Health.AvgDelivery.Milliseconds())
	normalizedDelivery := math.Max(deliveryMs, 2000) / 10000

	multiplier, _ := c.Vendor.PriceMultiplier.Float64()
	if multiplier <= 0 {
		multiplier = 1
	}
	priceFactor := multiplier
	if c.Offer != nil {
		if price, _ := c.Offer.Price.Float64(); price > 0 {
			priceFactor = price * multiplier
		}
	}
	if priceFactor <= 0 {
		priceFactor = 0.01
	}

	return (successRate * weight * priorityBoost * stockFactor) /
		(normalizedDelivery * priceFactor)
}

// rank orders candidates best-first: score descending, then priority
// ascending, then slug, so equal vendors rank deterministically.
func rank(candidates []*candidate) {
	for _, c := range candidates {
		c.Score = c.score()
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Vendor.Priority != candidates[j].Vendor.Priority {
			return candidates[i].Vendor.Priority < candidates[j].Vendor.Priority
		}
		return candidates[i].Vendor.Name < candidates[j].Vendor.Name
	})
}

// cheapestPerVendor picks each vendor's lowest-priced offer.
func cheapestPerVendor(offers []catalog.Offer) map[string]*catalog.Offer {
	best := make(map[string]*catalog.Offer)
	for i := range offers {
		offer := &offers[i]
		current, ok := best[offer.Vendor]
		if !ok || offer.Price.LessThan(current.Price) {
			best[offer.Vendor] = offer
		}
	}
	return best
}
