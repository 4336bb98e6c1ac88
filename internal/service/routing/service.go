package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/cache"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/repository"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/search"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/telemetry"
	"github.com/FlashTheFire/nexnum-backend/internal/metrics"
	"github.com/FlashTheFire/nexnum-backend/internal/service/health"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
)

// PurchaseInput is one purchase request. Vendor pins the purchase to a single
// vendor and disables cross-vendor failover.
type PurchaseInput struct {
	CountryCode string          `json:"country_code" validate:"required"`
	ServiceCode string          `json:"service_code" validate:"required"`
	Operator    string          `json:"operator,omitempty"`
	MaxPrice    decimal.Decimal `json:"max_price,omitempty"`
	Vendor      string          `json:"vendor,omitempty"`
}

// Router picks vendors for purchases and dispatches activation operations by
// the vendor prefix of the activation ID.
type Router struct {
	vendors *vendorCache
	factory provider.Factory
	monitor *health.Monitor
	index   search.Index
	cache   cache.Cache
	metrics *metrics.Registry
	audit   telemetry.AuditLogger
	logger  *zap.Logger
	tracer  trace.Tracer

	quoteTTL time.Duration
}

// NewRouter builds the smart router.
func NewRouter(
	repo repository.VendorRepository,
	c cache.Cache,
	factory provider.Factory,
	monitor *health.Monitor,
	index search.Index,
	reg *metrics.Registry,
	audit telemetry.AuditLogger,
	logger *zap.Logger,
	activeTTL, quoteTTL time.Duration,
) *Router {
	return &Router{
		vendors:  newVendorCache(repo, c, activeTTL, logger),
		factory:  factory,
		monitor:  monitor,
		index:    index,
		cache:    c,
		metrics:  reg,
		audit:    audit,
		logger:   logger,
		tracer:   telemetry.Tracer("routing"),
		quoteTTL: quoteTTL,
	}
}

// BustVendorCache drops the shared active-vendor cache. Admin vendor mutations
// call this so routing picks up the change within one request.
func (r *Router) BustVendorCache(ctx context.Context) {
	r.vendors.Bust(ctx)
}

// Buy executes a purchase. Pinned requests go to that vendor only; otherwise
// eligible vendors are tried in scored order until one succeeds. Failures of
// every kind advance to the next vendor; only the error reporting
// distinguishes retryable from permanent.
func (r *Router) Buy(ctx context.Context, input PurchaseInput) (*catalog.PurchaseResult, error) {
	ctx, span := r.tracer.Start(ctx, "router.buy",
		trace.WithAttributes(
			attribute.String("country", input.CountryCode),
			attribute.String("service", input.ServiceCode)))
	defer span.End()

	if input.Vendor != "" {
		return r.buyPinned(ctx, input)
	}

	candidates, err := r.eligibleCandidates(ctx, input.CountryCode, input.ServiceCode)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.NewBusinessError("NO_PROVIDERS_AVAILABLE",
			"no eligible vendor for this country and service")
	}
	rank(candidates)

	allNoStock := true
	attempts := make(map[string]interface{}, len(candidates))
	for _, c := range candidates {
		result, err := r.attempt(ctx, c.Vendor, c.Offer, input)
		if err == nil {
			return result, nil
		}

		kind := vendor.KindOf(err)
		attempts[c.Vendor.Name] = string(kind)
		if kind != vendor.KindNoStock {
			allNoStock = false
		}
		r.metrics.PurchaseFailover.WithLabelValues(c.Vendor.Name, string(kind)).Inc()
		r.logger.Warn("purchase attempt failed, moving to next vendor",
			zap.String("vendor", c.Vendor.Name),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	// Distinguish "everyone is sold out" from genuine failure: the former is
	// an inventory answer, not an outage.
	if allNoStock {
		return nil, errors.NewBusinessError("NO_STOCK",
			"no vendor has stock for this country and service").
			WithDetails(attempts)
	}
	return nil, errors.NewBusinessError("ALL_PROVIDERS_FAILED",
		fmt.Sprintf("all %d eligible vendors failed", len(candidates))).
		WithDetails(attempts)
}

func (r *Router) buyPinned(ctx context.Context, input PurchaseInput) (*catalog.PurchaseResult, error) {
	v, err := r.vendors.ByName(ctx, input.Vendor)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, errors.NewBusinessError("VENDOR_INACTIVE",
			fmt.Sprintf("vendor %s is not active", input.Vendor))
	}
	if !r.monitor.Allow(ctx, v.Name) {
		return nil, errors.NewBusinessError("VENDOR_UNAVAILABLE",
			fmt.Sprintf("vendor %s circuit is open", input.Vendor))
	}

	offer, err := r.bestOffer(ctx, v.Name, input.CountryCode, input.ServiceCode)
	if err != nil {
		r.logger.Warn("offer lookup failed for pinned purchase",
			zap.String("vendor", v.Name), zap.Error(err))
	}
	return r.attempt(ctx, v, offer, input)
}

// attempt runs one buy against one vendor, recording latency and outcome into
// the health monitor.
func (r *Router) attempt(ctx context.Context, v *vendor.Vendor, offer *catalog.Offer, input PurchaseInput) (*catalog.PurchaseResult, error) {
	client, err := r.factory(v)
	if err != nil {
		return nil, err
	}

	req := provider.BuyRequest{
		CountryExternalID: input.CountryCode,
		ServiceExternalID: input.ServiceCode,
		Operator:          input.Operator,
		MaxPrice:          input.MaxPrice,
	}
	if offer != nil {
		req.CountryExternalID = offer.ExternalCountryID
		req.ServiceExternalID = offer.ExternalServiceID
		if req.Operator == "" && offer.Operator != "any" {
			req.Operator = offer.Operator
		}
	}

	start := time.Now()
	result, err := client.Buy(ctx, req)
	latency := time.Since(start)
	r.monitor.Observe(ctx, v.Name, err, latency)

	if err != nil {
		r.metrics.PurchaseAttempts.WithLabelValues(v.Name, "failure").Inc()
		return nil, err
	}
	r.metrics.PurchaseAttempts.WithLabelValues(v.Name, "success").Inc()

	sellPrice := result.SellPrice
	if sellPrice.IsZero() && offer != nil {
		sellPrice = offer.Price
	}

	purchase := &catalog.PurchaseResult{
		ActivationID: catalog.FormatActivationID(v.Name, result.ActivationID),
		PhoneNumber:  result.PhoneNumber,
		SellPrice:    sellPrice,
		Vendor:       v.Name,
	}
	r.audit.Log("purchase", map[string]interface{}{
		"vendor":        v.Name,
		"country":       input.CountryCode,
		"service":       input.ServiceCode,
		"activation_id": purchase.ActivationID,
		"sell_price":    sellPrice.String(),
		"latency_ms":    latency.Milliseconds(),
	})
	return purchase, nil
}

// eligibleCandidates builds the scored candidate set: active vendors whose
// circuit admits traffic, each with its health picture and cheapest offer.
func (r *Router) eligibleCandidates(ctx context.Context, countryCode, serviceCode string) ([]*candidate, error) {
	vendors, err := r.vendors.Active(ctx)
	if err != nil {
		return nil, err
	}

	offers, err := r.index.SearchOffers(ctx, countryCode, serviceCode)
	if err != nil {
		r.logger.Warn("offer index unavailable, scoring without offers", zap.Error(err))
	}
	best := cheapestPerVendor(offers)

	candidates := make([]*candidate, 0, len(vendors))
	for _, v := range vendors {
		if !r.monitor.Allow(ctx, v.Name) {
			continue
		}
		h, err := r.monitor.Health(ctx, v.Name)
		if err != nil {
			h = health.VendorHealth{Vendor: v.Name, SuccessRate: fallbackSuccessRate}
		}
		candidates = append(candidates, &candidate{
			Vendor: v,
			Health: h,
			Offer:  best[v.Name],
		})
	}
	return candidates, nil
}

func (r *Router) bestOffer(ctx context.Context, vendorName, countryCode, serviceCode string) (*catalog.Offer, error) {
	offers, err := r.index.SearchOffers(ctx, countryCode, serviceCode)
	if err != nil {
		return nil, err
	}
	return cheapestPerVendor(offers)[vendorName], nil
}

// Status polls an activation. A terminal state with no delivered SMS surfaces
// as a LIFECYCLE_TERMINAL error, which health accounting treats as success.
func (r *Router) Status(ctx context.Context, activationID string) (*catalog.ActivationStatus, error) {
	var status *catalog.ActivationStatus
	v, err := r.dispatch(ctx, activationID, "status", func(client provider.Client, rawID string) error {
		var err error
		status, err = client.Status(ctx, rawID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if status.State.Terminal() && len(status.Messages) == 0 {
		r.monitor.ObserveNoDelivery(ctx, v)
		terminalErr := vendor.NewProviderError(v, "status",
			vendor.KindLifecycleTerminal,
			fmt.Sprintf("activation finished as %s without an SMS", status.State))
		// Recorded as success: the vendor answered correctly, the session is
		// simply over.
		r.monitor.Observe(ctx, v, terminalErr, 0)
		return status, terminalErr
	}
	return status, nil
}

// Cancel releases a purchased number back to the vendor.
func (r *Router) Cancel(ctx context.Context, activationID string) error {
	_, err := r.dispatch(ctx, activationID, "cancel", func(client provider.Client, rawID string) error {
		return client.Cancel(ctx, rawID)
	})
	return err
}

// Resend asks the vendor to resend the SMS.
func (r *Router) Resend(ctx context.Context, activationID string) error {
	_, err := r.dispatch(ctx, activationID, "resend", func(client provider.Client, rawID string) error {
		return client.Resend(ctx, rawID)
	})
	return err
}

// Complete marks an activation finished on the vendor side.
func (r *Router) Complete(ctx context.Context, activationID string) error {
	_, err := r.dispatch(ctx, activationID, "complete", func(client provider.Client, rawID string) error {
		return client.Complete(ctx, rawID)
	})
	return err
}

// dispatch routes an activation operation by vendor prefix. Legacy unprefixed
// IDs probe every active vendor in priority order; the first vendor that
// answers wins. Returns the vendor that served the call.
func (r *Router) dispatch(ctx context.Context, activationID, op string, call func(provider.Client, string) error) (string, error) {
	slug, rawID, err := catalog.ParseActivationID(activationID)
	if err != nil {
		return "", err
	}

	if slug != "" {
		v, err := r.vendors.ByName(ctx, slug)
		if err != nil {
			return "", err
		}
		return v.Name, r.callVendor(ctx, v, op, rawID, call)
	}

	vendors, err := r.vendors.Active(ctx)
	if err != nil {
		return "", err
	}
	var lastErr error = errors.NewNotFoundError("activation")
	for _, v := range vendors {
		if !r.monitor.Allow(ctx, v.Name) {
			continue
		}
		if err := r.callVendor(ctx, v, op, rawID, call); err != nil {
			lastErr = err
			continue
		}
		return v.Name, nil
	}
	return "", lastErr
}

func (r *Router) callVendor(ctx context.Context, v *vendor.Vendor, op, rawID string, call func(provider.Client, string) error) error {
	client, err := r.factory(v)
	if err != nil {
		return err
	}
	start := time.Now()
	err = call(client, rawID)
	r.monitor.Observe(ctx, v.Name, err, time.Since(start))
	return err
}

// TotalBalance sums account balances across active vendors. A vendor that
// cannot answer contributes zero; per-vendor figures are persisted for the
// low-balance report.
func (r *Router) TotalBalance(ctx context.Context, repo repository.VendorRepository) (decimal.Decimal, error) {
	vendors, err := r.vendors.Active(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, v := range vendors {
		client, err := r.factory(v)
		if err != nil {
			continue
		}
		start := time.Now()
		balance, err := client.GetBalance(ctx)
		r.monitor.Observe(ctx, v.Name, err, time.Since(start))
		if err != nil {
			r.logger.Warn("balance fetch failed",
				zap.String("vendor", v.Name), zap.Error(err))
			continue
		}
		total = total.Add(balance)
		if err := repo.UpdateBalance(ctx, v.ID, balance); err != nil {
			r.logger.Warn("balance persist failed",
				zap.String("vendor", v.Name), zap.Error(err))
		}
	}
	return total, nil
}
