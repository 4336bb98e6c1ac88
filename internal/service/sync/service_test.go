package sync

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/rates"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/telemetry"
	"github.com/FlashTheFire/nexnum-backend/internal/metrics"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
	"github.com/FlashTheFire/nexnum-backend/internal/service/registry"
)

// fakeCache is an in-memory cache.Cache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return "", cache.ErrCacheKeyNotFound{Key: key}
	}
	return string(raw), nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = raw
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	f.data[key] = raw
	return true, nil
}

func (f *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	raw, ok := f.data[key]
	f.mu.Unlock()
	if !ok {
		return cache.ErrCacheKeyNotFound{Key: key}
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return f.Set(ctx, key, value, ttl)
}

func (f *fakeCache) Close() error { return nil }

// fakeVendorRepo records sync bookkeeping.
type fakeVendorRepo struct {
	mu                 sync.Mutex
	vendors            map[string]*vendor.Vendor
	lastStatus         vendor.SyncStatus
	lastMetadataSynced bool
	balances           map[uuid.UUID]decimal.Decimal
}

func newFakeVendorRepo(vendors ...*vendor.Vendor) *fakeVendorRepo {
	byName := make(map[string]*vendor.Vendor, len(vendors))
	for _, v := range vendors {
		byName[v.Name] = v
	}
	return &fakeVendorRepo{vendors: byName, balances: map[uuid.UUID]decimal.Decimal{}}
}

func (f *fakeVendorRepo) GetByName(ctx context.Context, name string) (*vendor.Vendor, error) {
	if v, ok := f.vendors[name]; ok {
		return v, nil
	}
	return nil, assert.AnError
}

func (f *fakeVendorRepo) List(ctx context.Context) ([]*vendor.Vendor, error) {
	return f.ListActive(ctx)
}

func (f *fakeVendorRepo) ListActive(ctx context.Context) ([]*vendor.Vendor, error) {
	var out []*vendor.Vendor
	for _, v := range f.vendors {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVendorRepo) SetSyncStatus(ctx context.Context, id uuid.UUID, status vendor.SyncStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastStatus = status
	return nil
}

func (f *fakeVendorRepo) FinishSync(ctx context.Context, id uuid.UUID, status vendor.SyncStatus, metadataSynced bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastStatus = status
	f.lastMetadataSynced = metadataSynced
	return nil
}

func (f *fakeVendorRepo) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[id] = balance
	return nil
}

// fakeCatalogRepo keeps provider rows in memory and counts writes.
type fakeCatalogRepo struct {
	mu            sync.Mutex
	nextCountryID int
	nextServiceID int
	countryLooks  map[string]catalog.CountryLookup
	serviceLooks  map[string]catalog.ServiceLookup
	countries     map[string]catalog.ProviderCountry // keyed by external ID
	services      map[string]catalog.ProviderService
	writes        int
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		nextCountryID: 1,
		nextServiceID: 1,
		countryLooks:  map[string]catalog.CountryLookup{},
		serviceLooks:  map[string]catalog.ServiceLookup{},
		countries:     map[string]catalog.ProviderCountry{},
		services:      map[string]catalog.ProviderService{},
	}
}

func (f *fakeCatalogRepo) EnsureCountryLookup(ctx context.Context, code, name string) (catalog.CountryLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lookup, ok := f.countryLooks[code]; ok {
		return lookup, nil
	}
	lookup := catalog.CountryLookup{ID: f.nextCountryID, Code: code, Name: name}
	f.nextCountryID++
	f.countryLooks[code] = lookup
	return lookup, nil
}

func (f *fakeCatalogRepo) EnsureServiceLookup(ctx context.Context, code, name string) (catalog.ServiceLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lookup, ok := f.serviceLooks[code]; ok {
		return lookup, nil
	}
	lookup := catalog.ServiceLookup{ID: f.nextServiceID, Code: code, Name: name}
	f.nextServiceID++
	f.serviceLooks[code] = lookup
	return lookup, nil
}

func (f *fakeCatalogRepo) UpsertProviderCountry(ctx context.Context, row catalog.ProviderCountry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countries[row.ExternalID] = row
	f.writes++
	return nil
}

func (f *fakeCatalogRepo) UpsertProviderService(ctx context.Context, row catalog.ProviderService) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[row.ExternalID] = row
	f.writes++
	return nil
}

func (f *fakeCatalogRepo) ListProviderCountries(ctx context.Context, vendorID uuid.UUID) ([]catalog.ProviderCountry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []catalog.ProviderCountry
	for _, row := range f.countries {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeCatalogRepo) ListProviderServices(ctx context.Context, vendorID uuid.UUID) ([]catalog.ProviderService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []catalog.ProviderService
	for _, row := range f.services {
		out = append(out, row)
	}
	return out, nil
}

// fakeIndex records publishes.
type fakeIndex struct {
	mu      sync.Mutex
	deletes []string
	batches [][]catalog.Offer
}

func (f *fakeIndex) UpsertOffers(ctx context.Context, offers []catalog.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]catalog.Offer, len(offers))
	copy(batch, offers)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeIndex) DeleteByVendor(ctx context.Context, vendorName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, vendorName)
	return nil
}

func (f *fakeIndex) SwapShadow(ctx context.Context, shadowName string) error { return nil }

func (f *fakeIndex) SearchOffers(ctx context.Context, countryCode, serviceCode string) ([]catalog.Offer, error) {
	return nil, nil
}

func (f *fakeIndex) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

// fakeSyncClient scripts the vendor side of a sync run.
type fakeSyncClient struct {
	countries      []catalog.Country
	services       []catalog.Service
	prices         map[string][]catalog.PriceRow // keyed by country external ID
	priceErr       map[string]error
	balance        decimal.Decimal
	countriesCalls int
	servicesCalls  int
}

func (f *fakeSyncClient) ListCountries(ctx context.Context) ([]catalog.Country, error) {
	f.countriesCalls++
	return f.countries, nil
}

func (f *fakeSyncClient) ListServices(ctx context.Context, countryCode string) ([]catalog.Service, error) {
	f.servicesCalls++
	return f.services, nil
}

func (f *fakeSyncClient) ListPrices(ctx context.Context, country catalog.Country) ([]catalog.PriceRow, error) {
	if err := f.priceErr[country.ExternalID]; err != nil {
		return nil, err
	}
	return f.prices[country.ExternalID], nil
}

func (f *fakeSyncClient) Buy(ctx context.Context, req provider.BuyRequest) (*catalog.BuyResult, error) {
	return nil, assert.AnError
}

func (f *fakeSyncClient) Status(ctx context.Context, activationID string) (*catalog.ActivationStatus, error) {
	return nil, assert.AnError
}

func (f *fakeSyncClient) Cancel(ctx context.Context, activationID string) error   { return nil }
func (f *fakeSyncClient) Resend(ctx context.Context, activationID string) error   { return nil }
func (f *fakeSyncClient) Complete(ctx context.Context, activationID string) error { return nil }

func (f *fakeSyncClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return f.balance, nil
}

func syncMapping() vendor.Mapping {
	ops := map[vendor.Operation]vendor.OperationSpec{}
	for _, op := range []vendor.Operation{
		vendor.OpListCountries, vendor.OpListServices, vendor.OpListPrices,
		vendor.OpBuy, vendor.OpStatus, vendor.OpCancel, vendor.OpGetBalance,
	} {
		ops[op] = vendor.OperationSpec{Method: "GET", URL: "https://api.example.com/" + string(op)}
	}
	return vendor.Mapping{
		Version:    1,
		Auth:       vendor.AuthSpec{Type: vendor.AuthQueryKey, Key: "api_key"},
		Currency:   "USD",
		Operations: ops,
	}
}

func syncVendor(t *testing.T) *vendor.Vendor {
	t.Helper()
	v, err := vendor.NewVendor("smshub", "SMSHub", "USD")
	require.NoError(t, err)
	v.Mapping = syncMapping()
	return v
}

type syncHarness struct {
	svc     *Service
	vendors *fakeVendorRepo
	catalog *fakeCatalogRepo
	index   *fakeIndex
	cache   *fakeCache
	client  *fakeSyncClient
}

func newSyncHarness(t *testing.T, v *vendor.Vendor, client *fakeSyncClient) *syncHarness {
	t.Helper()
	vendors := newFakeVendorRepo(v)
	cat := newFakeCatalogRepo()
	index := &fakeIndex{}
	c := newFakeCache()
	logger := zap.NewNop()

	static := &rates.StaticSource{
		Rates:    map[string]decimal.Decimal{"RUB": decimal.RequireFromString("90")},
		Settings: rates.SystemSettings{PointsRate: decimal.RequireFromString("100")},
	}

	svc := NewService(
		vendors, cat,
		registry.New(cat, logger),
		func(vv *vendor.Vendor) (provider.Client, error) { return client, nil },
		index, static, static, c,
		provider.NewIconResolver("", "/static/icons"),
		metrics.NewTestRegistry(),
		telemetry.NewAuditLogger(logger),
		logger,
		config.SyncConfig{
			MaxInFlight:       4,
			RequestsPerMinute: 6000,
			MetadataMaxAge:    24 * time.Hour,
		},
		5000,
	)
	return &syncHarness{svc: svc, vendors: vendors, catalog: cat, index: index, cache: c, client: client}
}

func TestSyncVendorFullRun(t *testing.T) {
	v := syncVendor(t)
	client := &fakeSyncClient{
		countries: []catalog.Country{
			{ExternalID: "0", Code: "ru", Name: "Russia"},
			{ExternalID: "187", Code: "us", Name: "United States"},
		},
		services: []catalog.Service{
			{ExternalID: "wa", Code: "whatsapp", Name: "WhatsApp"},
		},
		prices: map[string][]catalog.PriceRow{
			"0": {{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "any",
				RawPrice: decimal.RequireFromString("0.20"), Count: 12}},
		},
		balance: decimal.RequireFromString("55.5"),
	}
	h := newSyncHarness(t, v, client)

	stats, err := h.svc.SyncVendor(context.Background(), "smshub")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.CountriesSynced)
	assert.Equal(t, 1, stats.ServicesSynced)
	assert.Equal(t, 3, stats.MetadataWrites)
	assert.False(t, stats.MetadataReused)
	assert.Equal(t, 1, stats.PriceRows)
	assert.Equal(t, 1, stats.OffersPublished)

	assert.Equal(t, []string{"smshub"}, h.index.deletes)
	assert.Equal(t, 1, h.index.published())

	assert.Equal(t, vendor.SyncStatusSuccess, h.vendors.lastStatus)
	assert.True(t, h.vendors.lastMetadataSynced)
	assert.True(t, h.vendors.balances[v.ID].Equal(decimal.RequireFromString("55.5")))

	// The lock is released after the run.
	_, err = h.cache.Get(context.Background(), cache.SyncLockPrefix+"smshub")
	assert.Error(t, err)
}

func TestSyncVendorLockConflict(t *testing.T) {
	v := syncVendor(t)
	h := newSyncHarness(t, v, &fakeSyncClient{})

	_, err := h.cache.SetNX(context.Background(),
		cache.SyncLockPrefix+"smshub", "held", time.Minute)
	require.NoError(t, err)

	_, err = h.svc.SyncVendor(context.Background(), "smshub")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestSyncVendorReusesFreshMetadata(t *testing.T) {
	v := syncVendor(t)
	recent := time.Now().Add(-time.Hour)
	v.LastMetadataSyncAt = &recent

	client := &fakeSyncClient{
		prices: map[string][]catalog.PriceRow{
			"0": {{CountryCode: "ru", ServiceCode: "whatsapp", Operator: "any",
				RawPrice: decimal.RequireFromString("0.20"), Count: 5}},
		},
	}
	h := newSyncHarness(t, v, client)

	// Pre-seed a resolved catalog so the freshness rule can hold.
	h.catalog.countries["0"] = catalog.ProviderCountry{
		VendorID: v.ID, ExternalID: "0",
		CanonicalCode: "ru", CanonicalName: "Russia", IsActive: true,
	}
	h.catalog.services["wa"] = catalog.ProviderService{
		VendorID: v.ID, ExternalID: "wa",
		CanonicalCode: "whatsapp", CanonicalName: "WhatsApp", IsActive: true,
	}

	stats, err := h.svc.SyncVendor(context.Background(), "smshub")
	require.NoError(t, err)

	assert.True(t, stats.MetadataReused)
	assert.Zero(t, client.countriesCalls)
	assert.Zero(t, client.servicesCalls)
	assert.Equal(t, 1, stats.OffersPublished)
	assert.False(t, h.vendors.lastMetadataSynced)
}

func TestSyncVendorRefreshesStaleMetadata(t *testing.T) {
	v := syncVendor(t)
	stale := time.Now().Add(-48 * time.Hour)
	v.LastMetadataSyncAt = &stale

	client := &fakeSyncClient{
		countries: []catalog.Country{{ExternalID: "0", Code: "ru", Name: "Russia"}},
		services:  []catalog.Service{{ExternalID: "wa", Code: "whatsapp", Name: "WhatsApp"}},
	}
	h := newSyncHarness(t, v, client)
	h.catalog.countries["0"] = catalog.ProviderCountry{
		VendorID: v.ID, ExternalID: "0",
		CanonicalCode: "ru", CanonicalName: "Russia", IsActive: true,
	}

	_, err := h.svc.SyncVendor(context.Background(), "smshub")
	require.NoError(t, err)
	assert.Equal(t, 1, client.countriesCalls)
}

func TestUpsertCatalogSkipsUnchangedRows(t *testing.T) {
	v := syncVendor(t)
	h := newSyncHarness(t, v, &fakeSyncClient{})
	ctx := context.Background()

	countries := []catalog.Country{{ExternalID: "0", Code: "ru", Name: "Russia"}}
	services := []catalog.Service{{ExternalID: "wa", Code: "whatsapp", Name: "WhatsApp", IconURL: "https://cdn/wa.png"}}

	writes, err := h.svc.upsertCatalog(ctx, v, countries, services, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, writes)

	stored, err := h.catalog.ListProviderCountries(ctx, v.ID)
	require.NoError(t, err)
	storedSvcs, err := h.catalog.ListProviderServices(ctx, v.ID)
	require.NoError(t, err)

	// Same inputs against the stored rows: an idempotent resync writes nothing.
	writes, err = h.svc.upsertCatalog(ctx, v, countries, services, stored, storedSvcs)
	require.NoError(t, err)
	assert.Zero(t, writes)

	// A changed icon is one write.
	services[0].IconURL = "https://cdn/wa-v2.png"
	writes, err = h.svc.upsertCatalog(ctx, v, countries, services, stored, storedSvcs)
	require.NoError(t, err)
	assert.Equal(t, 1, writes)
}

func TestPlaceholderName(t *testing.T) {
	assert.True(t, placeholderName("", "12"))
	assert.True(t, placeholderName("12", "12"))
	assert.True(t, placeholderName("4491", "12"))
	assert.False(t, placeholderName("Russia", "12"))
}

func TestSyncAllRestrictsToConfiguredVendor(t *testing.T) {
	alpha := syncVendor(t)
	bravo, err := vendor.NewVendor("bravo", "Bravo", "USD")
	require.NoError(t, err)
	bravo.Mapping = syncMapping()

	h := newSyncHarness(t, alpha, &fakeSyncClient{})
	h.vendors.vendors["bravo"] = bravo
	h.svc.cfg.Vendor = "smshub"

	var ran []string
	var mu sync.Mutex
	runner := runnerFunc(func(ctx context.Context, name string) error {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, name)
		return nil
	})

	require.NoError(t, h.svc.SyncAll(context.Background(), runner))
	assert.Equal(t, []string{"smshub"}, ran)
}

type runnerFunc func(ctx context.Context, vendorName string) error

func (f runnerFunc) Run(ctx context.Context, vendorName string) error { return f(ctx, vendorName) }
