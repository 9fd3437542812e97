package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	coreerrors "rentchain/core/errors"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording JSON-RPC
// activity per module.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = newModuleMetrics(prometheus.DefaultRegisterer)
	})
	return moduleRegistry
}

func newModuleMetrics(reg prometheus.Registerer) *moduleMetrics {
	m := &moduleMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rent",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
		}, []string{"module", "method", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rent",
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Total JSON-RPC errors segmented by module, method and error code.",
		}, []string{"module", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rent",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for JSON-RPC handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"module", "method"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rent",
			Subsystem: "rpc",
			Name:      "throttles_total",
			Help:      "Count of requests rejected by the rate limiter.",
		}, []string{"module", "reason"}),
	}
	reg.MustRegister(m.requests, m.errors, m.latency, m.throttles)
	return m
}

// Observe records one JSON-RPC call. code is the JSON-RPC error code, zero on
// success.
func (m *moduleMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	module := moduleOf(method)
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(method, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(moduleOf(method), reason).Inc()
}

func moduleOf(method string) string {
	module, _, found := strings.Cut(method, "_")
	if !found || module == "" {
		return "unknown"
	}
	return module
}

// LedgerMetrics tracks committed ledger calls. It satisfies the node's call
// observer.
type LedgerMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	// pushed mirrors calls to the global OTLP meter when one is installed.
	pushed metric.Int64Counter
}

// Ledger returns the process-wide ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = NewLedgerMetrics(prometheus.DefaultRegisterer)
	})
	return ledgerRegistry
}

// NewLedgerMetrics registers the ledger collectors with reg.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rent",
			Subsystem: "ledger",
			Name:      "calls_total",
			Help:      "Mutating ledger calls by method and failure kind.",
		}, []string{"method", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rent",
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Time spent executing and committing a ledger call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.calls, m.latency)
	if counter, err := otel.Meter("rentchain/ledger").Int64Counter("rent.ledger.calls",
		metric.WithDescription("Mutating ledger calls by method and failure kind.")); err == nil {
		m.pushed = counter
	}
	return m
}

// ObserveCall records one committed call. Successful calls use kind "ok".
func (m *LedgerMetrics) ObserveCall(method string, ok bool, kind coreerrors.Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "ok"
	if !ok {
		label = string(kind)
		if label == "" {
			label = "Internal"
		}
	}
	m.calls.WithLabelValues(method, label).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
	if m.pushed != nil {
		m.pushed.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("kind", label),
		))
	}
}
