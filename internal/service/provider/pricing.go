package provider

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/values"
)

// Calculator converts a vendor's raw native price into the sell price. It is
// built once per sync run from a snapshot of the exchange-rate table and the
// points rate, so every offer in a run prices against the same figures.
type Calculator struct {
	rates      map[string]decimal.Decimal // ISO code -> units per USD
	pointsRate decimal.Decimal            // points per USD
}

// NewCalculator builds a calculator from a rate snapshot.
func NewCalculator(rates map[string]decimal.Decimal, pointsRate decimal.Decimal) (Calculator, error) {
	if !pointsRate.IsPositive() {
		return Calculator{}, fmt.Errorf("points rate must be positive, got %s", pointsRate)
	}
	return Calculator{rates: rates, pointsRate: pointsRate}, nil
}

// rateToUSD returns units of currency per one USD.
func (c Calculator) rateToUSD(iso string) (decimal.Decimal, error) {
	iso = strings.ToUpper(strings.TrimSpace(iso))
	if iso == "" || iso == "USD" {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := c.rates[iso]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("no exchange rate for %s", iso)
	}
	return rate, nil
}

// EffectiveRate resolves the vendor's native-currency-per-USD rate according to
// its normalization mode.
//
// MANUAL uses the admin-set rate verbatim. SMART_AUTO derives the rate from
// deposit economics: points received per USD actually spent, so hidden fees and
// bonuses are priced in. SMART_AUTO without both deposit figures falls back to
// AUTO, which reads the external rate table.
func (c Calculator) EffectiveRate(v *vendor.Vendor) (decimal.Decimal, error) {
	switch v.NormalizationMode {
	case vendor.NormalizationManual:
		if v.NormalizationRate == nil || !v.NormalizationRate.IsPositive() {
			return decimal.Zero, fmt.Errorf("vendor %s: MANUAL mode requires a positive normalization rate", v.Name)
		}
		return *v.NormalizationRate, nil

	case vendor.NormalizationSmartAuto:
		if v.HasDepositEconomics() {
			depositCurrency := v.DepositCurrency
			if depositCurrency == "" {
				depositCurrency = v.Currency
			}
			depositRate, err := c.rateToUSD(depositCurrency)
			if err != nil {
				return decimal.Zero, fmt.Errorf("vendor %s: %w", v.Name, err)
			}
			spentUSD := v.DepositSpent.Div(depositRate)
			if !spentUSD.IsPositive() {
				return decimal.Zero, fmt.Errorf("vendor %s: deposit spent normalizes to zero USD", v.Name)
			}
			return v.DepositReceived.Div(spentUSD), nil
		}
		fallthrough

	default: // AUTO
		rate, err := c.rateToUSD(v.Currency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("vendor %s: %w", v.Name, err)
		}
		return rate, nil
	}
}

// SellPrice computes the final priced offer from a raw vendor price:
//
//	baseUSD    = raw / effectiveRate
//	sellPoints = baseUSD * pointsRate * multiplier + markup * pointsRate
func (c Calculator) SellPrice(v *vendor.Vendor, raw decimal.Decimal) (values.Price, error) {
	if raw.IsNegative() {
		return values.Price{}, fmt.Errorf("vendor %s: negative raw price %s", v.Name, raw)
	}
	rate, err := c.EffectiveRate(v)
	if err != nil {
		return values.Price{}, err
	}
	baseUSD := raw.Div(rate)
	sellPoints := baseUSD.Mul(c.pointsRate).Mul(v.PriceMultiplier).
		Add(v.FixedMarkup.Mul(c.pointsRate))
	return values.NewPrice(sellPoints, baseUSD, raw, v.Currency)
}
