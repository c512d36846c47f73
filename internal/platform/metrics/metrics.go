package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the broker's Prometheus metrics.
type Metrics struct {
	Transfers          *prometheus.CounterVec
	BackendDuration    *prometheus.HistogramVec
	BackendErrors      *prometheus.CounterVec
	TransportIDsIssued prometheus.Counter
}

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fts_transfers_total",
			Help: "Completed broker operations by kind",
		}, []string{"operation"}),
		BackendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fts_backend_request_duration_seconds",
			Help:    "Latency of pseudonymization backend calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"backend"}),
		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fts_backend_errors_total",
			Help: "Failed pseudonymization backend calls by error category",
		}, []string{"backend", "category"}),
		TransportIDsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "fts_transport_ids_issued_total",
			Help: "Transport ids minted by the broker",
		}),
	}
}

// IncrementTransfers counts one completed operation.
func (m *Metrics) IncrementTransfers(operation string) {
	m.Transfers.WithLabelValues(operation).Inc()
}

// AddTransportIDs counts n newly issued transport ids.
func (m *Metrics) AddTransportIDs(n int) {
	m.TransportIDsIssued.Add(float64(n))
}

func (m *Metrics) ObserveBackendRequest(backend string, d time.Duration) {
	m.BackendDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *Metrics) IncrementBackendError(backend, category string) {
	m.BackendErrors.WithLabelValues(backend, category).Inc()
}
