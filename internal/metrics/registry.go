package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the Prometheus collectors for the provider integration core.
type Registry struct {
	// Health monitor gauges, labeled by vendor.
	VendorSuccessRate  *prometheus.GaugeVec
	VendorCircuitState *prometheus.GaugeVec // 0=closed, 1=open, 2=half-open
	VendorAvgLatency   *prometheus.GaugeVec // milliseconds

	// Router counters.
	PurchaseAttempts *prometheus.CounterVec // vendor, outcome
	PurchaseFailover *prometheus.CounterVec // from_vendor, kind

	// Synchronizer.
	SyncRuns      *prometheus.CounterVec // vendor, status
	SyncDuration  *prometheus.HistogramVec
	OffersIndexed *prometheus.GaugeVec
}

// NewRegistry creates and registers all collectors on the given registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		VendorSuccessRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexnum",
			Subsystem: "provider",
			Name:      "success_rate",
			Help:      "Time-decayed success rate per vendor.",
		}, []string{"vendor"}),
		VendorCircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexnum",
			Subsystem: "provider",
			Name:      "circuit_state",
			Help:      "Circuit state per vendor: 0 closed, 1 open, 2 half-open.",
		}, []string{"vendor"}),
		VendorAvgLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexnum",
			Subsystem: "provider",
			Name:      "avg_latency_ms",
			Help:      "Average request latency per vendor in milliseconds.",
		}, []string{"vendor"}),
		PurchaseAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexnum",
			Subsystem: "router",
			Name:      "purchase_attempts_total",
			Help:      "Purchase attempts per vendor and outcome.",
		}, []string{"vendor", "outcome"}),
		PurchaseFailover: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexnum",
			Subsystem: "router",
			Name:      "purchase_failovers_total",
			Help:      "Failovers triggered per vendor and error kind.",
		}, []string{"vendor", "kind"}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexnum",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Catalog sync runs per vendor and status.",
		}, []string{"vendor", "status"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexnum",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Catalog sync duration per vendor.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"vendor"}),
		OffersIndexed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexnum",
			Subsystem: "sync",
			Name:      "offers_indexed",
			Help:      "Offer documents published in the last sync per vendor.",
		}, []string{"vendor"}),
	}

	reg.MustRegister(
		r.VendorSuccessRate,
		r.VendorCircuitState,
		r.VendorAvgLatency,
		r.PurchaseAttempts,
		r.PurchaseFailover,
		r.SyncRuns,
		r.SyncDuration,
		r.OffersIndexed,
	)
	return r
}

// NewTestRegistry creates a registry on a throwaway registerer for tests.
func NewTestRegistry() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
