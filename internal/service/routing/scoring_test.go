package routing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/service/health"
)

func scoringVendor(t *testing.T, name string, priority int, weight, multiplier string) *vendor.Vendor {
	t.Helper()
	v, err := vendor.NewVendor(name, name, "USD")
	require.NoError(t, err)
	v.Priority = priority
	v.Weight = decimal.RequireFromString(weight)
	v.PriceMultiplier = decimal.RequireFromString(multiplier)
	return v
}

func TestCandidateScore(t *testing.T) {
	c := &candidate{
		Vendor: scoringVendor(t, "smshub", 2, "2", "1.5"),
		Health: health.VendorHealth{
			SuccessRate: 0.9,
			AvgDelivery: 4 * time.Second,
		},
		Offer: &catalog.Offer{
			Stock: 90, // log10(90+10) = 2
			Price: decimal.RequireFromString("10"),
		},
	}

	// (0.9 * 2 * 0.5 * 2) / (0.4 * 15) = 0.3
	assert.InDelta(t, 0.3, c.score(), 1e-9)
}

func TestCandidateScoreGuards(t *testing.T) {
	t.Run("no offer uses the stock floor", func(t *testing.T) {
		c := &candidate{
			Vendor: scoringVendor(t, "smshub", 1, "1", "1"),
			Health: health.VendorHealth{SuccessRate: 1.0},
		}
		// (1 * 1 * 1 * 0.1) / (0.2 * 1) = 0.5
		assert.InDelta(t, 0.5, c.score(), 1e-9)
	})

	t.Run("fast delivery clamps to the floor", func(t *testing.T) {
		slow := &candidate{
			Vendor: scoringVendor(t, "smshub", 1, "1", "1"),
			Health: health.VendorHealth{SuccessRate: 1.0, AvgDelivery: 20 * time.Second},
		}
		fast := &candidate{
			Vendor: scoringVendor(t, "smshub", 1, "1", "1"),
			Health: health.VendorHealth{SuccessRate: 1.0, AvgDelivery: 500 * time.Millisecond},
		}
		floor := &candidate{
			Vendor: scoringVendor(t, "smshub", 1, "1", "1"),
			Health: health.VendorHealth{SuccessRate: 1.0, AvgDelivery: 2 * time.Second},
		}
		assert.Greater(t, fast.score(), slow.score())
		assert.Equal(t, floor.score(), fast.score())
	})

	t.Run("zero priority treated as one", func(t *testing.T) {
		c := &candidate{
			Vendor: scoringVendor(t, "smshub", 0, "1", "1"),
			Health: health.VendorHealth{SuccessRate: 1.0},
		}
		assert.Greater(t, c.score(), 0.0)
	})
}

func TestRankOrdering(t *testing.T) {
	strong := &candidate{
		Vendor: scoringVendor(t, "strong", 1, "1", "1"),
		Health: health.VendorHealth{SuccessRate: 1.0},
	}
	weak := &candidate{
		Vendor: scoringVendor(t, "weak", 1, "1", "1"),
		Health: health.VendorHealth{SuccessRate: 0.2},
	}

	candidates := []*candidate{weak, strong}
	rank(candidates)
	assert.Equal(t, "strong", candidates[0].Vendor.Name)
}

func TestRankTieBreaks(t *testing.T) {
	a := &candidate{
		Vendor: scoringVendor(t, "bravo", 1, "1", "1"),
		Health: health.VendorHealth{SuccessRate: 1.0},
	}
	b := &candidate{
		Vendor: scoringVendor(t, "alpha", 1, "1", "1"),
		Health: health.VendorHealth{SuccessRate: 1.0},
	}
	// Identical scores and priorities: the slug decides.
	candidates := []*candidate{a, b}
	rank(candidates)
	assert.Equal(t, "alpha", candidates[0].Vendor.Name)

	// Doubling alpha's weight cancels its worse priority boost, leaving the
	// scores equal; the priority tiebreak then favors bravo.
	b.Vendor.Priority = 2
	b.Vendor.Weight = decimal.RequireFromString("2")
	priorityBalanced := []*candidate{b, a}
	rank(priorityBalanced)
	assert.Equal(t, "bravo", priorityBalanced[0].Vendor.Name)
}

func TestCheapestPerVendor(t *testing.T) {
	offers := []catalog.Offer{
		{Vendor: "smshub", Operator: "any", Price: decimal.RequireFromString("12")},
		{Vendor: "smshub", Operator: "op2", Price: decimal.RequireFromString("8")},
		{Vendor: "fivesim", Operator: "any", Price: decimal.RequireFromString("15")},
	}

	best := cheapestPerVendor(offers)
	require.Len(t, best, 2)
	assert.True(t, best["smshub"].Price.Equal(decimal.RequireFromString("8")))
	assert.True(t, best["fivesim"].Price.Equal(decimal.RequireFromString("15")))
}
