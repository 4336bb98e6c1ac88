package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
)

// httpIndex talks to a document search service over its JSON HTTP API. The
// service is expected to expose Meilisearch-compatible document endpoints:
// bulk add with primary-key replacement, delete-by-filter, index swap, and
// filtered search.
type httpIndex struct {
	baseURL   string
	apiKey    string
	indexName string
	client    *http.Client
	logger    *zap.Logger
}

// NewHTTPIndex builds the offer-index client.
func NewHTTPIndex(cfg *config.SearchConfig, logger *zap.Logger) (Index, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("search index url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &httpIndex{
		baseURL:   cfg.URL,
		apiKey:    cfg.APIKey,
		indexName: cfg.IndexName,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

func (h *httpIndex) UpsertOffers(ctx context.Context, offers []catalog.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	path := fmt.Sprintf("/indexes/%s/documents", h.indexName)
	if err := h.do(ctx, http.MethodPost, path, offers, nil); err != nil {
		return fmt.Errorf("index upsert of %d offers failed: %w", len(offers), err)
	}
	return nil
}

func (h *httpIndex) DeleteByVendor(ctx context.Context, vendorName string) error {
	path := fmt.Sprintf("/indexes/%s/documents/delete", h.indexName)
	body := map[string]string{"filter": fmt.Sprintf("vendor = %q", vendorName)}
	if err := h.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("index delete for vendor %s failed: %w", vendorName, err)
	}
	return nil
}

func (h *httpIndex) SwapShadow(ctx context.Context, shadowName string) error {
	body := []map[string][]string{
		{"indexes": {h.indexName, shadowName}},
	}
	if err := h.do(ctx, http.MethodPost, "/swap-indexes", body, nil); err != nil {
		return fmt.Errorf("index swap with %s failed: %w", shadowName, err)
	}
	return nil
}

func (h *httpIndex) SearchOffers(ctx context.Context, countryCode, serviceCode string) ([]catalog.Offer, error) {
	path := fmt.Sprintf("/indexes/%s/search", h.indexName)
	body := map[string]interface{}{
		"filter": fmt.Sprintf("providerCountryCode = %q AND providerServiceCode = %q AND isActive = true",
			countryCode, serviceCode),
		"limit": 1000,
	}
	var result struct {
		Hits []catalog.Offer `json:"hits"`
	}
	if err := h.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, fmt.Errorf("offer search failed: %w", err)
	}
	return result.Hits, nil
}

func (h *httpIndex) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.NewExternalError("search-index", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		h.logger.Error("search index request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return errors.NewExternalError("search-index",
			fmt.Sprintf("%s %s returned HTTP %d", method, path, resp.StatusCode))
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
