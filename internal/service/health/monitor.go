package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
	"github.com/FlashTheFire/nexnum-backend/internal/metrics"
)

// VendorHealth is the router's view of one vendor's health.
type VendorHealth struct {
	Vendor       string        `json:"vendor"`
	SuccessRate  float64       `json:"success_rate"`
	AvgLatency   time.Duration `json:"avg_latency"`
	AvgDelivery  time.Duration `json:"avg_delivery"`
	DeliveryRate float64       `json:"delivery_rate"`
	Circuit      Snapshot      `json:"circuit"`
}

// Monitor ties the sample window and the circuit breaker together behind one
// surface. Every vendor call reports its outcome here; the router asks here
// before sending traffic.
type Monitor struct {
	samples *SampleStore
	circuit *Circuit
	local   *localCache
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewMonitor builds the health monitor.
func NewMonitor(client *redis.Client, cfg config.HealthConfig, reg *metrics.Registry, logger *zap.Logger) *Monitor {
	return &Monitor{
		samples: NewSampleStore(client, cfg.Window),
		circuit: NewCircuit(client, cfg, logger),
		local:   newLocalCache(cfg.CacheTTL),
		metrics: reg,
		logger:  logger,
	}
}

// Observe records the outcome of one vendor call. An error whose kind is a
// health success (a terminal activation state) counts as a success; errors in
// the systemic class trip the circuit immediately.
func (m *Monitor) Observe(ctx context.Context, vendorName string, callErr error, latency time.Duration) {
	success := callErr == nil
	systemic := false
	if callErr != nil {
		kind := vendor.KindOf(callErr)
		success = kind.HealthSuccess()
		systemic = kind.Systemic()
	}

	if err := m.samples.Record(ctx, vendorName, success, latency); err != nil {
		m.logger.Warn("health sample write failed",
			zap.String("vendor", vendorName), zap.Error(err))
	}

	var err error
	if success {
		err = m.circuit.RecordSuccess(ctx, vendorName)
	} else {
		err = m.circuit.RecordFailure(ctx, vendorName, systemic)
	}
	if err != nil {
		m.logger.Warn("circuit update failed",
			zap.String("vendor", vendorName), zap.Error(err))
	}

	m.local.invalidate(vendorName)
}

// ObserveDelivery records the time from purchase to first SMS.
func (m *Monitor) ObserveDelivery(ctx context.Context, vendorName string, elapsed time.Duration) {
	if err := m.samples.RecordDelivery(ctx, vendorName, elapsed); err != nil {
		m.logger.Warn("delivery sample write failed",
			zap.String("vendor", vendorName), zap.Error(err))
	}
	if err := m.samples.RecordSMSOutcome(ctx, vendorName, true); err != nil {
		m.logger.Warn("sms outcome write failed",
			zap.String("vendor", vendorName), zap.Error(err))
	}
}

// ObserveNoDelivery records an activation that ended without an SMS.
func (m *Monitor) ObserveNoDelivery(ctx context.Context, vendorName string) {
	if err := m.samples.RecordSMSOutcome(ctx, vendorName, false); err != nil {
		m.logger.Warn("sms outcome write failed",
			zap.String("vendor", vendorName), zap.Error(err))
	}
}

// Allow reports whether traffic may go to the vendor right now.
func (m *Monitor) Allow(ctx context.Context, vendorName string) bool {
	ok, _, err := m.circuit.Allow(ctx, vendorName)
	if err != nil {
		m.logger.Warn("circuit check degraded, allowing traffic",
			zap.String("vendor", vendorName), zap.Error(err))
		return true
	}
	return ok
}

// Health returns the vendor's current health picture, served from the
// in-process cache when fresh.
func (m *Monitor) Health(ctx context.Context, vendorName string) (VendorHealth, error) {
	now := time.Now()
	if cached, ok := m.local.get(vendorName, now); ok {
		return cached, nil
	}

	rate, err := m.samples.SuccessRate(ctx, vendorName, now)
	if err != nil {
		return VendorHealth{}, err
	}
	latency, err := m.samples.AvgLatency(ctx, vendorName, now)
	if err != nil {
		return VendorHealth{}, err
	}
	delivery, err := m.samples.AvgDelivery(ctx, vendorName, now)
	if err != nil {
		return VendorHealth{}, err
	}
	deliveryRate, err := m.samples.DeliveryRate(ctx, vendorName, now)
	if err != nil {
		return VendorHealth{}, err
	}
	circuit, err := m.circuit.Inspect(ctx, vendorName)
	if err != nil {
		return VendorHealth{}, err
	}

	h := VendorHealth{
		Vendor:       vendorName,
		SuccessRate:  rate,
		AvgLatency:   latency,
		AvgDelivery:  delivery,
		DeliveryRate: deliveryRate,
		Circuit:      circuit,
	}
	m.local.set(vendorName, h, now)

	m.metrics.VendorSuccessRate.WithLabelValues(vendorName).Set(rate)
	m.metrics.VendorCircuitState.WithLabelValues(vendorName).Set(circuit.State.GaugeValue())
	m.metrics.VendorAvgLatency.WithLabelValues(vendorName).Set(float64(latency.Milliseconds()))

	return h, nil
}

// ForceCircuit pins a vendor's circuit open or closed. Admin override.
func (m *Monitor) ForceCircuit(ctx context.Context, vendorName string, state State) error {
	m.local.invalidate(vendorName)
	return m.circuit.Force(ctx, vendorName, state)
}

// ClearCircuitForce removes a manual circuit override.
func (m *Monitor) ClearCircuitForce(ctx context.Context, vendorName string) error {
	m.local.invalidate(vendorName)
	return m.circuit.ClearForce(ctx, vendorName)
}
