package run

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for aggregation runs.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	VehiclesMapped  prometheus.Counter
	VehiclesDropped prometheus.Counter
	ProviderFails   prometheus.Counter
}

// NewMetrics creates and registers run metrics. A nil registerer leaves
// the instruments unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonesnap_runs_total",
			Help: "Aggregation runs by kind and result.",
		}, []string{"kind", "result"}),
		VehiclesMapped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonesnap_vehicles_mapped_total",
			Help: "Vehicles successfully binned into a zone.",
		}),
		VehiclesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonesnap_vehicles_dropped_total",
			Help: "Vehicles whose coordinates matched no zone.",
		}),
		ProviderFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonesnap_provider_failures_total",
			Help: "Provider fetches that produced no usable feed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RunsTotal, m.VehiclesMapped, m.VehiclesDropped, m.ProviderFails)
	}
	return m
}
