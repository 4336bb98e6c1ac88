package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/service/registry"
)

const (
	maxResponseBytes = 10 << 20
	maxPages         = 50
)

// Adapter executes a vendor's declarative mapping: it binds templates, applies
// the auth recipe, fires the HTTP call, classifies the outcome and normalizes
// the decoded rows into canonical catalog types. One adapter serves one vendor
// and is safe for concurrent use.
type Adapter struct {
	vendor   *vendor.Vendor
	registry *registry.Service
	icons    *IconResolver
	client   *http.Client
	logger   *zap.Logger
}

// NewAdapter validates the vendor's mapping and builds its adapter.
func NewAdapter(v *vendor.Vendor, reg *registry.Service, icons *IconResolver, logger *zap.Logger) (*Adapter, error) {
	if err := v.Mapping.Validate(); err != nil {
		return nil, fmt.Errorf("vendor %s: %w", v.Name, err)
	}
	return &Adapter{
		vendor:   v,
		registry: reg,
		icons:    icons,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With(zap.String("vendor", v.Name)),
	}, nil
}

// NewFactory returns the production client factory.
func NewFactory(reg *registry.Service, icons *IconResolver, logger *zap.Logger) Factory {
	return func(v *vendor.Vendor) (Client, error) {
		return NewAdapter(v, reg, icons, logger)
	}
}

// call executes one operation and returns the decoded records.
func (a *Adapter) call(ctx context.Context, op vendor.Operation, vars map[string]string) ([]record, vendor.OperationSpec, error) {
	spec, ok := a.vendor.Mapping.Operations[op]
	if !ok {
		return nil, spec, vendor.NewProviderError(a.vendor.Name, string(op),
			vendor.KindBadRequest, "operation not supported by mapping")
	}

	body, status, err := a.execute(ctx, op, spec, vars, "")
	if err != nil {
		return nil, spec, err
	}
	if perr := classifyResponse(a.vendor.Name, string(op), spec, status, body); perr != nil {
		return nil, spec, perr
	}

	records, err := decodeRecords(spec, body)
	if err != nil {
		return nil, spec, vendor.NewProviderError(a.vendor.Name, string(op),
			vendor.KindUnknown, "undecodable response").WithStatus(status).WithCause(err)
	}
	return records, spec, nil
}

// callPaged executes a list operation, following the mapping's pagination hints
// when declared. Pages are fetched until one comes back short or empty.
func (a *Adapter) callPaged(ctx context.Context, op vendor.Operation, vars map[string]string) ([]record, vendor.OperationSpec, error) {
	spec, ok := a.vendor.Mapping.Operations[op]
	if !ok || spec.Pagination == nil || spec.Pagination.PageParam == "" {
		return a.call(ctx, op, vars)
	}

	pg := spec.Pagination
	pageSize := pg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []record
	for page := 1; page <= maxPages; page++ {
		extra := url.Values{}
		extra.Set(pg.PageParam, strconv.Itoa(page))
		if pg.SizeParam != "" {
			extra.Set(pg.SizeParam, strconv.Itoa(pageSize))
		}

		body, status, err := a.execute(ctx, op, spec, vars, extra.Encode())
		if err != nil {
			return nil, spec, err
		}
		if perr := classifyResponse(a.vendor.Name, string(op), spec, status, body); perr != nil {
			return nil, spec, perr
		}
		records, err := decodeRecords(spec, body)
		if err != nil {
			return nil, spec, vendor.NewProviderError(a.vendor.Name, string(op),
				vendor.KindUnknown, "undecodable response").WithStatus(status).WithCause(err)
		}

		all = append(all, records...)
		if len(records) == 0 || len(records) < pageSize {
			break
		}
	}
	return all, spec, nil
}

// execute builds and fires one HTTP request. extraQuery is appended after
// template binding; it carries pagination parameters.
func (a *Adapter) execute(ctx context.Context, op vendor.Operation, spec vendor.OperationSpec, vars map[string]string, extraQuery string) ([]byte, int, error) {
	bound := make(map[string]string, len(vars)+1)
	escaped := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		bound[k] = v
		escaped[k] = url.QueryEscape(v)
	}
	bound["apiKey"] = a.vendor.APIKey
	escaped["apiKey"] = url.QueryEscape(a.vendor.APIKey)

	rawURL, err := bindTemplate(spec.URL, escaped)
	if err != nil {
		return nil, 0, vendor.NewProviderError(a.vendor.Name, string(op),
			vendor.KindBadRequest, err.Error())
	}

	var reqBody io.Reader
	contentType := ""
	if spec.Body != "" {
		tplVars := bound
		if spec.Encoding == vendor.EncodingForm {
			tplVars = escaped
			contentType = "application/x-www-form-urlencoded"
		} else {
			contentType = "application/json"
		}
		payload, err := bindTemplate(spec.Body, tplVars)
		if err != nil {
			return nil, 0, vendor.NewProviderError(a.vendor.Name, string(op),
				vendor.KindBadRequest, err.Error())
		}
		reqBody = strings.NewReader(payload)
	}

	if a.vendor.Mapping.Auth.Type == vendor.AuthQueryKey {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + url.QueryEscape(a.vendor.Mapping.Auth.Key) + "=" + url.QueryEscape(a.vendor.APIKey)
	}
	if extraQuery != "" {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + extraQuery
	}

	timeout := a.vendor.Mapping.OperationTimeout(op)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, spec.Method, rawURL, reqBody)
	if err != nil {
		return nil, 0, vendor.NewProviderError(a.vendor.Name, string(op),
			vendor.KindBadRequest, "invalid request").WithCause(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	switch a.vendor.Mapping.Auth.Type {
	case vendor.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.vendor.APIKey)
	case vendor.AuthHeader:
		req.Header.Set(a.vendor.Mapping.Auth.Key, a.vendor.APIKey)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, classifyTransport(a.vendor.Name, string(op), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, classifyTransport(a.vendor.Name, string(op), err)
	}

	a.logger.Debug("vendor call",
		zap.String("op", string(op)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(raw)))

	return raw, resp.StatusCode, nil
}

// operationWantsVar reports whether the operation's templates reference the
// named placeholder.
func (a *Adapter) operationWantsVar(op vendor.Operation, name string) bool {
	spec, ok := a.vendor.Mapping.Operations[op]
	if !ok {
		return false
	}
	return templateWants(spec.URL, name) || templateWants(spec.Body, name)
}

func (a *Adapter) ListCountries(ctx context.Context) ([]catalog.Country, error) {
	records, spec, err := a.callPaged(ctx, vendor.OpListCountries, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	countries := make([]catalog.Country, 0, len(records))
	for _, rec := range records {
		rawID := firstNonEmpty(rec.field(spec.Fields, "id"), rec["$key"])
		rawName := rec.field(spec.Fields, "name")
		if rawID == "" && rawName == "" {
			continue
		}
		code, name, iso2 := a.registry.CanonicalCountry(rawID, rawName)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		countries = append(countries, catalog.Country{
			ExternalID: firstNonEmpty(rawID, code),
			Code:       code,
			Name:       name,
			ISO2:       iso2,
			FlagURL:    a.icons.CountryFlag(code, rec.field(spec.Fields, "icon")),
		})
	}
	return countries, nil
}

func (a *Adapter) ListServices(ctx context.Context, countryCode string) ([]catalog.Service, error) {
	candidates := []string{countryCode}
	if countryCode == "" && a.operationWantsVar(vendor.OpListServices, "country") {
		candidates = []string{"", "us"}
		if countries, err := a.ListCountries(ctx); err == nil && len(countries) > 0 {
			candidates = append(candidates, countries[0].ExternalID)
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		services, err := a.listServicesOnce(ctx, candidate)
		if err == nil {
			return services, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (a *Adapter) listServicesOnce(ctx context.Context, countryCode string) ([]catalog.Service, error) {
	records, spec, err := a.callPaged(ctx, vendor.OpListServices, map[string]string{"country": countryCode})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	services := make([]catalog.Service, 0, len(records))
	for _, rec := range records {
		rawID := firstNonEmpty(rec.field(spec.Fields, "id"), rec["$key"])
		rawName := rec.field(spec.Fields, "name")
		if rawID == "" && rawName == "" {
			continue
		}
		code, name := a.registry.CanonicalService(rawID, rawName)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		services = append(services, catalog.Service{
			ExternalID: firstNonEmpty(rawID, code),
			Code:       code,
			Name:       name,
			IconURL:    a.icons.ServiceIcon(code, rec.field(spec.Fields, "icon")),
		})
	}
	return services, nil
}

func (a *Adapter) ListPrices(ctx context.Context, country catalog.Country) ([]catalog.PriceRow, error) {
	records, spec, err := a.callPaged(ctx, vendor.OpListPrices,
		map[string]string{"country": country.ExternalID})
	if err != nil {
		return nil, err
	}

	rows := make([]catalog.PriceRow, 0, len(records))
	for _, rec := range records {
		serviceExt := firstNonEmpty(
			rec.field(spec.Fields, "service"),
			rec.field(spec.Fields, "id"),
			rec["$key"])
		if serviceExt == "" {
			continue
		}

		rawPrice := rec.field(spec.Fields, "price")
		price, err := decimal.NewFromString(strings.TrimSpace(rawPrice))
		if err != nil || price.IsNegative() {
			a.logger.Warn("skipping price row with unparseable price",
				zap.String("service", serviceExt), zap.String("raw_price", rawPrice))
			continue
		}

		count := 0
		if rawCount := rec.field(spec.Fields, "count"); rawCount != "" {
			count, err = strconv.Atoi(strings.TrimSpace(rawCount))
			if err != nil {
				continue
			}
			// Sold-out rows never reach the index.
			if count <= 0 {
				continue
			}
		}

		serviceCode, _ := a.registry.CanonicalService(serviceExt, rec.field(spec.Fields, "name"))
		operator := rec.field(spec.Fields, "operator")
		if operator == "" {
			operator = "any"
		}

		// Global price listings carry the country in each row.
		countryCode := country.Code
		if countryExt := rec.field(spec.Fields, "country"); countryExt != "" {
			countryCode, _, _ = a.registry.CanonicalCountry(countryExt, "")
		}

		rows = append(rows, catalog.PriceRow{
			CountryCode: countryCode,
			ServiceCode: serviceCode,
			Operator:    operator,
			RawPrice:    price,
			Count:       count,
		})
	}
	return rows, nil
}

func (a *Adapter) Buy(ctx context.Context, req BuyRequest) (*catalog.BuyResult, error) {
	vars := map[string]string{
		"country":  req.CountryExternalID,
		"service":  req.ServiceExternalID,
		"operator": req.Operator,
		"maxPrice": "",
	}
	if req.MaxPrice.IsPositive() {
		vars["maxPrice"] = req.MaxPrice.String()
	}

	records, spec, err := a.call(ctx, vendor.OpBuy, vars)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, vendor.NewProviderError(a.vendor.Name, string(vendor.OpBuy),
			vendor.KindUnknown, "empty buy response")
	}
	rec := records[0]

	activationID := firstNonEmpty(
		rec.field(spec.Fields, "activation"),
		rec.field(spec.Fields, "id"),
		rec["1"])
	if activationID == "" {
		return nil, vendor.NewProviderError(a.vendor.Name, string(vendor.OpBuy),
			vendor.KindUnknown, "buy response carries no activation id")
	}

	phone := firstNonEmpty(
		rec.field(spec.Fields, "phone"),
		rec.field(spec.Fields, "number"),
		rec["2"])

	result := &catalog.BuyResult{ActivationID: activationID, PhoneNumber: phone}
	if rawPrice := rec.field(spec.Fields, "price"); rawPrice != "" {
		if price, err := decimal.NewFromString(strings.TrimSpace(rawPrice)); err == nil {
			result.SellPrice = price
		}
	}
	return result, nil
}

func (a *Adapter) Status(ctx context.Context, activationID string) (*catalog.ActivationStatus, error) {
	records, spec, err := a.call(ctx, vendor.OpStatus,
		map[string]string{"activation": activationID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, vendor.NewProviderError(a.vendor.Name, string(vendor.OpStatus),
			vendor.KindUnknown, "empty status response")
	}
	rec := records[0]

	rawState := firstNonEmpty(
		rec.field(spec.Fields, "status"),
		rec["0"],
		rec["$value"])
	status := &catalog.ActivationStatus{State: normalizeState(rawState, spec.StatusMap)}

	for _, logical := range []string{"sms", "code"} {
		if msg := rec.field(spec.Fields, logical); msg != "" {
			for _, line := range strings.Split(msg, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					status.Messages = append(status.Messages, line)
				}
			}
		}
	}
	// Colon-delimited answers carry the code after the status token.
	if len(status.Messages) == 0 && status.State == catalog.ActivationReceived {
		if code := rec["1"]; code != "" && code != rawState {
			status.Messages = append(status.Messages, code)
		}
	}
	return status, nil
}

func (a *Adapter) Cancel(ctx context.Context, activationID string) error {
	_, _, err := a.call(ctx, vendor.OpCancel, map[string]string{"activation": activationID})
	return err
}

func (a *Adapter) Resend(ctx context.Context, activationID string) error {
	_, _, err := a.call(ctx, vendor.OpResend, map[string]string{"activation": activationID})
	return err
}

func (a *Adapter) Complete(ctx context.Context, activationID string) error {
	_, _, err := a.call(ctx, vendor.OpComplete, map[string]string{"activation": activationID})
	return err
}

func (a *Adapter) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	records, spec, err := a.call(ctx, vendor.OpGetBalance, nil)
	if err != nil {
		return decimal.Zero, err
	}
	if len(records) == 0 {
		return decimal.Zero, vendor.NewProviderError(a.vendor.Name, string(vendor.OpGetBalance),
			vendor.KindUnknown, "empty balance response")
	}
	rec := records[0]

	raw := firstNonEmpty(
		rec.field(spec.Fields, "balance"),
		rec["1"],
		rec["$value"])
	balance, perr := decimal.NewFromString(strings.TrimSpace(raw))
	if perr != nil {
		return decimal.Zero, vendor.NewProviderError(a.vendor.Name, string(vendor.OpGetBalance),
			vendor.KindUnknown, fmt.Sprintf("unparseable balance %q", raw)).WithCause(perr)
	}
	return balance, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
