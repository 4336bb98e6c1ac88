package sync

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

func TestFanOutPricesCollectsAndCountsFailures(t *testing.T) {
	client := &fakeSyncClient{
		prices: map[string][]catalog.PriceRow{
			"0": {{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "any",
				RawPrice: decimal.RequireFromString("0.20"), Count: 10}},
			"187": {{CountryCode: "us", ServiceCode: "whatsapp", Operator: "any",
				RawPrice: decimal.RequireFromString("0.50"), Count: 3}},
		},
		priceErr: map[string]error{
			"43": vendor.NewProviderError("smshub", "listPrices",
				vendor.KindServerError, "boom"),
		},
	}
	countries := []catalog.Country{
		{ExternalID: "0", Code: "ru"},
		{ExternalID: "43", Code: "de"},
		{ExternalID: "187", Code: "us"},
	}

	rows, failed, err := fanOutPrices(context.Background(), client, countries,
		2, 6000, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Len(t, rows, 2)
}

func TestFanOutPricesAbortsOnBadCredentials(t *testing.T) {
	client := &fakeSyncClient{
		priceErr: map[string]error{
			"0": vendor.NewProviderError("smshub", "listPrices",
				vendor.KindBadCredentials, "bad key"),
		},
	}
	countries := []catalog.Country{{ExternalID: "0", Code: "ru"}}

	_, _, err := fanOutPrices(context.Background(), client, countries,
		2, 6000, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, vendor.KindBadCredentials, vendor.KindOf(err))
}

func TestFanOutPricesClampsInFlight(t *testing.T) {
	client := &fakeSyncClient{
		prices: map[string][]catalog.PriceRow{
			"0": {{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "any",
				RawPrice: decimal.RequireFromString("0.20"), Count: 1}},
		},
	}
	rows, failed, err := fanOutPrices(context.Background(), client,
		[]catalog.Country{{ExternalID: "0", Code: "ru"}}, 0, 6000, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.Len(t, rows, 1)
}
