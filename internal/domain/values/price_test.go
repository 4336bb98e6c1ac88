package values

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPriceRounding(t *testing.T) {
	p, err := NewPrice(
		decimal.RequireFromString("12.345"),
		decimal.RequireFromString("0.123456"),
		decimal.RequireFromString("9.87654321"),
		"RUB")
	require.NoError(t, err)

	assert.Equal(t, "12.35", p.SellPoints().StringFixed(2))
	assert.Equal(t, "0.1235", p.BaseUSD().StringFixed(4))
	assert.Equal(t, "9.876543", p.RawCost().StringFixed(6))
	assert.Equal(t, "RUB", p.Currency())
}

func TestNewPriceRejectsNegative(t *testing.T) {
	_, err := NewPrice(decimal.NewFromInt(-1), decimal.Zero, decimal.Zero, "USD")
	assert.Error(t, err)

	_, err = NewPrice(decimal.Zero, decimal.NewFromInt(-1), decimal.Zero, "USD")
	assert.Error(t, err)
}
