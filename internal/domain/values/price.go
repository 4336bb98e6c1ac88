package values

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is the computed sell price of one offer. Points are the internal
// currency unit; the USD base and the raw vendor cost are retained at higher
// precision for audit. Prices are computed at index time so the displayed price
// always equals the charged price.
type Price struct {
	sellPoints decimal.Decimal // 2 dp
	baseUSD    decimal.Decimal // 4 dp
	rawCost    decimal.Decimal // 6 dp, vendor native currency
	currency   string
}

// NewPrice builds a Price, applying the canonical rounding to each component.
func NewPrice(sellPoints, baseUSD, rawCost decimal.Decimal, currency string) (Price, error) {
	if sellPoints.IsNegative() || baseUSD.IsNegative() {
		return Price{}, fmt.Errorf("price cannot be negative: %s points / %s usd",
			sellPoints.String(), baseUSD.String())
	}
	return Price{
		sellPoints: sellPoints.Round(2),
		baseUSD:    baseUSD.Round(4),
		rawCost:    rawCost.Round(6),
		currency:   currency,
	}, nil
}

// MustNewPrice builds a Price and panics on error (fixtures and tests).
func MustNewPrice(sellPoints, baseUSD, rawCost decimal.Decimal, currency string) Price {
	p, err := NewPrice(sellPoints, baseUSD, rawCost, currency)
	if err != nil {
		panic(err)
	}
	return p
}

// SellPoints returns the points amount charged to the user, rounded to 2 dp.
func (p Price) SellPoints() decimal.Decimal { return p.sellPoints }

// BaseUSD returns the normalized USD base cost, rounded to 4 dp.
func (p Price) BaseUSD() decimal.Decimal { return p.baseUSD }

// RawCost returns the untransformed vendor cost, rounded to 6 dp.
func (p Price) RawCost() decimal.Decimal { return p.rawCost }

// Currency returns the vendor's native currency code.
func (p Price) Currency() string { return p.currency }

func (p Price) String() string {
	return fmt.Sprintf("%s pts (%s USD, raw %s %s)",
		p.sellPoints.StringFixed(2), p.baseUSD.StringFixed(4),
		p.rawCost.StringFixed(6), p.currency)
}
