package sync

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
)

func testIndex() *catalogIndex {
	return &catalogIndex{
		countries: map[string]catalog.ProviderCountry{
			"ru": {ExternalID: "0", CanonicalCode: "ru", CanonicalName: "Russia",
				FlagURL: "/static/icons/flags/ru.png", IsActive: true},
			"de": {ExternalID: "43", CanonicalCode: "de", CanonicalName: "Germany",
				IsActive: false},
		},
		services: map[string]catalog.ProviderService{
			"whatsapp": {ExternalID: "wa", CanonicalCode: "whatsapp",
				CanonicalName: "WhatsApp", IconURL: "/static/icons/services/whatsapp.png",
				IsActive: true},
		},
		countryID: map[string]int{"ru": 7},
		serviceID: map[string]int{"whatsapp": 3},
	}
}

func testCalc(t *testing.T) provider.Calculator {
	t.Helper()
	calc, err := provider.NewCalculator(
		map[string]decimal.Decimal{"RUB": decimal.RequireFromString("90")},
		decimal.RequireFromString("100"))
	require.NoError(t, err)
	return calc
}

func TestBuildOffers(t *testing.T) {
	v := syncVendor(t)
	h := newSyncHarness(t, v, &fakeSyncClient{})
	now := time.Now()

	rows := []catalog.PriceRow{
		{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "any",
			RawPrice: decimal.RequireFromString("0.20"), Count: 10},
		// Inactive country: dropped.
		{CountryCode: "de", ServiceCode: "whatsapp", Operator: "any",
			RawPrice: decimal.RequireFromString("0.30"), Count: 5},
		// Service missing from the vendor's catalog: dropped.
		{CountryCode: "ru", ServiceCode: "telegram", Operator: "any",
			RawPrice: decimal.RequireFromString("0.25"), Count: 8},
		// Duplicate of the first row's offer ID: dropped.
		{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "any",
			RawPrice: decimal.RequireFromString("0.99"), Count: 1},
		{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "mts",
			RawPrice: decimal.RequireFromString("0.40"), Count: 4},
		// Sold out: dropped before emission.
		{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "beeline",
			RawPrice: decimal.RequireFromString("0.15"), Count: 0},
	}

	offers := h.svc.buildOffers(v, testCalc(t), rows, testIndex(), now)
	require.Len(t, offers, 2)

	first := offers[0]
	assert.Equal(t, "smshub_ru_whatsapp_any", first.ID)
	assert.Equal(t, "smshub", first.Vendor)
	assert.Equal(t, 7, first.CountryID)
	assert.Equal(t, 3, first.ServiceID)
	assert.Equal(t, "Russia", first.CountryName)
	assert.Equal(t, "WhatsApp", first.ServiceName)
	assert.Equal(t, "0", first.ExternalCountryID)
	assert.Equal(t, "wa", first.ExternalServiceID)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("20")),
		"got %s", first.Price)
	assert.Equal(t, 10, first.Stock)
	assert.Equal(t, now, first.LastSyncedAt)
	assert.True(t, first.IsActive)

	assert.Equal(t, "smshub_ru_whatsapp_mts", offers[1].ID)
	for _, o := range offers {
		assert.Positive(t, o.Stock)
	}
}

func TestPublishOffersChunks(t *testing.T) {
	v := syncVendor(t)
	h := newSyncHarness(t, v, &fakeSyncClient{})
	h.svc.batchSize = 2

	offers := make([]catalog.Offer, 5)
	for i := range offers {
		offers[i] = catalog.Offer{ID: string(rune('a' + i)), Vendor: "smshub"}
	}

	require.NoError(t, h.svc.publishOffers(context.Background(), "smshub", offers))

	assert.Equal(t, []string{"smshub"}, h.index.deletes)
	require.Len(t, h.index.batches, 3)
	assert.Len(t, h.index.batches[0], 2)
	assert.Len(t, h.index.batches[1], 2)
	assert.Len(t, h.index.batches[2], 1)
}

func TestPublishOffersCancelledBeforeDelete(t *testing.T) {
	v := syncVendor(t)
	h := newSyncHarness(t, v, &fakeSyncClient{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.svc.publishOffers(ctx, "smshub", []catalog.Offer{{ID: "x"}})
	require.Error(t, err)
	assert.Empty(t, h.index.deletes, "a cancelled run must not wipe the vendor's index slice")
}

func TestOperatorAssigner(t *testing.T) {
	o := newOperatorAssigner()
	assert.Equal(t, 1, o.id("any"))
	assert.Equal(t, 2, o.id("mts"))
	assert.Equal(t, 1, o.id("any"))
}
