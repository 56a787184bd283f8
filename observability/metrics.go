package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics bundles the collectors tracking protocol operation health.
type LendingMetrics struct {
	operations   *prometheus.CounterVec
	errors       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	utilization  *prometheus.GaugeVec
	totalValue   *prometheus.GaugeVec
	liquidations *prometheus.CounterVec
}

type apiMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics

	apiMetricsOnce sync.Once
	apiRegistry    *apiMetrics
)

// Lending returns the lazily-initialised metrics registry for the lending
// engine.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendhub",
				Subsystem: "lending",
				Name:      "operations_total",
				Help:      "Count of lending operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendhub",
				Subsystem: "lending",
				Name:      "errors_total",
				Help:      "Count of lending failures segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendhub",
				Subsystem: "lending",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for lending engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendhub",
				Subsystem: "lending",
				Name:      "market_utilization_bps",
				Help:      "Pool utilisation per market in basis points.",
			}, []string{"asset"}),
			totalValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendhub",
				Subsystem: "lending",
				Name:      "market_total_units",
				Help:      "Market aggregate balances in native units, segmented by side.",
			}, []string{"asset", "side"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendhub",
				Subsystem: "lending",
				Name:      "liquidations_total",
				Help:      "Count of liquidations segmented by debt asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.errors,
			lendingRegistry.latency,
			lendingRegistry.utilization,
			lendingRegistry.totalValue,
			lendingRegistry.liquidations,
		)
	})
	return lendingRegistry
}

// Observe records one engine operation. Reasons should be stable sentinel
// strings so dashboards and alerts stay consistent across releases.
func (m *LendingMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := labelOrUnknown(operation)
	outcome := "success"
	if err != nil {
		outcome = "error"
		reason := strings.TrimSpace(err.Error())
		if reason == "" {
			reason = "unknown"
		}
		m.errors.WithLabelValues(op, reason).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordMarket updates the per-market gauges from a fresh snapshot.
func (m *LendingMetrics) RecordMarket(asset string, utilizationBps, totalSupplied, totalBorrowed uint64) {
	if m == nil {
		return
	}
	label := labelAsset(asset)
	m.utilization.WithLabelValues(label).Set(float64(utilizationBps))
	m.totalValue.WithLabelValues(label, "supplied").Set(float64(totalSupplied))
	m.totalValue.WithLabelValues(label, "borrowed").Set(float64(totalBorrowed))
}

// RecordLiquidation increments the liquidation counter for a debt asset.
func (m *LendingMetrics) RecordLiquidation(asset string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(labelAsset(asset)).Inc()
}

// API returns the metrics registry for the HTTP surface.
func API() *apiMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = &apiMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendhub",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total HTTP API requests segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendhub",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendhub",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(apiRegistry.requests, apiRegistry.latency, apiRegistry.throttles)
	})
	return apiRegistry
}

// Observe records the outcome of one HTTP request.
func (m *apiMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := labelOrUnknown(route)
	m.requests.WithLabelValues(label, statusLabel(status)).Inc()
	m.latency.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for a route.
func (m *apiMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOrUnknown(route)).Inc()
}

func labelOrUnknown(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
