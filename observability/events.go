package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"rentchain/core/events"
	"rentchain/native/escrow"
	"rentchain/native/rewards"
	"rentchain/observability/metrics"
)

// EventMetrics derives business metrics from committed events. It implements
// events.Emitter so the node can fan events into it.
type EventMetrics struct {
	emitted     *prometheus.CounterVec
	volume      *prometheus.CounterVec
	heldDeposit prometheus.Gauge
	rewards     *metrics.RewardsMetrics
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the process-wide event metrics registry.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = NewEventMetrics(prometheus.DefaultRegisterer)
	})
	return eventRegistry
}

// NewEventMetrics registers the event collectors with reg.
func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rent",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Committed events by type.",
		}, []string{"type"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rent",
			Subsystem: "escrow",
			Name:      "volume_total",
			Help:      "Amount moved through escrow by payment type, in base units.",
		}, []string{"payment_type"}),
		heldDeposit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rent",
			Subsystem: "escrow",
			Name:      "deposits_held",
			Help:      "Security deposits currently in custody, in base units.",
		}),
		rewards: metrics.NewRewardsMetrics(reg),
	}
	reg.MustRegister(m.emitted, m.volume, m.heldDeposit)
	return m
}

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	payload := events.Payload(evt)
	if m == nil || payload == nil {
		return
	}
	m.emitted.WithLabelValues(payload.Type).Inc()
	switch payload.Type {
	case escrow.EventTypePaymentRecorded:
		amount := parseAmount(payload.Attributes["amount"])
		kind := payload.Attributes["paymentType"]
		m.volume.WithLabelValues(kind).Add(amount)
		switch kind {
		case escrow.PaymentSecurityDeposit.String():
			m.heldDeposit.Add(amount)
		case escrow.PaymentDepositRelease.String(), escrow.PaymentEmergencyWithdrawal.String():
			m.heldDeposit.Sub(amount)
		}
	case rewards.EventTypeRewardIssued:
		m.rewards.RecordIssued(payload.Attributes["kind"], parseAmount(payload.Attributes["amount"]))
	case rewards.EventTypeMinted:
		m.rewards.RecordIssued("admin_mint", parseAmount(payload.Attributes["amount"]))
	case rewards.EventTypeBurned:
		m.rewards.RecordBurned(parseAmount(payload.Attributes["amount"]))
	}
}

func parseAmount(raw string) float64 {
	v, ok := new(big.Float).SetString(raw)
	if !ok {
		return 0
	}
	f, _ := v.Float64()
	return f
}
