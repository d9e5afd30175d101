package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the transfer engine.
type Metrics struct {
	TransfersApproved prometheus.Counter
	TransfersRejected *prometheus.CounterVec
	RegistrarLookup   *prometheus.HistogramVec
	InvestorSlots     *prometheus.GaugeVec
	AdminOps          *prometheus.CounterVec
}

// New creates and registers all engine metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		TransfersApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veriledger_transfers_approved_total",
			Help: "Transfers that passed the full eligibility decision.",
		}),
		TransfersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriledger_transfers_rejected_total",
			Help: "Transfers rejected, labeled by rejection code.",
		}, []string{"code"}),
		RegistrarLookup: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veriledger_registrar_lookup_seconds",
			Help:    "Latency of identity registrar lookups.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		InvestorSlots: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "veriledger_investor_slots",
			Help: "Occupied investor slots, labeled by jurisdiction.",
		}, []string{"country"}),
		AdminOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriledger_admin_operations_total",
			Help: "Administrative operations, labeled by action and outcome.",
		}, []string{"action", "outcome"}),
	}
}

// ObserveRegistrarLookup records one registrar round trip.
func (m *Metrics) ObserveRegistrarLookup(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RegistrarLookup.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRejection counts one rejected transfer by code.
func (m *Metrics) RecordRejection(code string) {
	if m == nil {
		return
	}
	m.TransfersRejected.WithLabelValues(code).Inc()
}

// RecordApproval counts one approved transfer.
func (m *Metrics) RecordApproval() {
	if m == nil {
		return
	}
	m.TransfersApproved.Inc()
}
