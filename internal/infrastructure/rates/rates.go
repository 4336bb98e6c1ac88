package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
)

// Source supplies fiat exchange rates: ISO currency code to USD rate (units of
// currency per one USD). Rates are consumed at sync time only; purchase-time
// pricing never touches this interface.
type Source interface {
	GetExchangeRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// SystemSettings carries the tunables the core consumes from the wider system.
type SystemSettings struct {
	PointsRate decimal.Decimal `json:"points_rate"` // points per USD
}

// SettingsSource supplies the current system settings.
type SettingsSource interface {
	GetSystemSettings(ctx context.Context) (SystemSettings, error)
}

// httpSource fetches rates and settings from the platform's internal API.
type httpSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger

	mu        sync.RWMutex
	lastRates map[string]decimal.Decimal
	fetchedAt time.Time
}

// NewHTTPSource builds a rate/settings client against the internal rate API.
func NewHTTPSource(cfg *config.RatesConfig, logger *zap.Logger) *httpSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &httpSource{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *httpSource) GetExchangeRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	var payload struct {
		Rates map[string]string `json:"rates"`
	}
	if err := s.get(ctx, "/internal/rates", &payload); err != nil {
		// A stale rate beats no rate for a best-effort refresh.
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.lastRates != nil {
			s.logger.Warn("rate fetch failed, using stale rates",
				zap.Time("fetched_at", s.fetchedAt), zap.Error(err))
			return s.lastRates, nil
		}
		return nil, err
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for iso, raw := range payload.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			s.logger.Warn("skipping malformed exchange rate",
				zap.String("currency", iso), zap.String("raw", raw))
			continue
		}
		rates[iso] = rate
	}

	s.mu.Lock()
	s.lastRates = rates
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return rates, nil
}

func (s *httpSource) GetSystemSettings(ctx context.Context) (SystemSettings, error) {
	var payload struct {
		PointsRate string `json:"points_rate"`
	}
	if err := s.get(ctx, "/internal/settings", &payload); err != nil {
		return SystemSettings{}, err
	}
	rate, err := decimal.NewFromString(payload.PointsRate)
	if err != nil {
		return SystemSettings{}, fmt.Errorf("malformed points rate %q: %w", payload.PointsRate, err)
	}
	return SystemSettings{PointsRate: rate}, nil
}

func (s *httpSource) get(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.NewExternalError("rates", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewExternalError("rates",
			fmt.Sprintf("GET %s returned HTTP %d", path, resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// StaticSource serves a fixed rate table and settings; used in tests and as a
// bootstrap fallback when the rate API is not configured.
type StaticSource struct {
	Rates    map[string]decimal.Decimal
	Settings SystemSettings
}

func (s *StaticSource) GetExchangeRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	return s.Rates, nil
}

func (s *StaticSource) GetSystemSettings(ctx context.Context) (SystemSettings, error) {
	return s.Settings, nil
}
