package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// RewardsMetrics tracks BRIQ-R issuance.
type RewardsMetrics struct {
	issued *prometheus.CounterVec
	burned prometheus.Counter
	supply prometheus.Gauge
}

// NewRewardsMetrics registers the reward collectors with reg.
func NewRewardsMetrics(reg prometheus.Registerer) *RewardsMetrics {
	m := &RewardsMetrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rent_rewards_issued_total",
			Help: "BRIQ-R issued by reason, in base units.",
		}, []string{"kind"}),
		burned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rent_rewards_burned_total",
			Help: "BRIQ-R burned by the admin, in base units.",
		}),
		supply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rent_rewards_supply",
			Help: "BRIQ-R supply observed since process start, in base units.",
		}),
	}
	reg.MustRegister(m.issued, m.burned, m.supply)
	return m
}

// RecordIssued counts newly created tokens.
func (m *RewardsMetrics) RecordIssued(kind string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "unknown"
	}
	m.issued.WithLabelValues(kind).Add(amount)
	m.supply.Add(amount)
}

// RecordBurned counts destroyed tokens.
func (m *RewardsMetrics) RecordBurned(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.burned.Add(amount)
	m.supply.Sub(amount)
}
