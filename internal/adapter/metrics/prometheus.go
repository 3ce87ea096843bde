// Package metrics exposes ledger and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"sodminer-wallet/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "sodminer_wallet"

// Prometheus implements ports.LedgerMetrics and records HTTP traffic.
type Prometheus struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	volume      *prometheus.CounterVec
	httpTotal   *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// NewPrometheus registers the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Ledger operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_operation_duration_seconds",
				Help:      "Duration of ledger operations",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		volume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_volume_total",
				Help:      "Absolute amount moved by committed ledger operations",
			},
			[]string{"operation", "currency"},
		),
		httpTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveOperation counts a ledger operation and records its duration.
func (p *Prometheus) ObserveOperation(op string, outcome string, elapsed time.Duration) {
	p.operations.WithLabelValues(op, outcome).Inc()
	p.opDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// AddVolume adds the absolute value of amount to the volume counter.
func (p *Prometheus) AddVolume(op string, currency domain.Currency, amount decimal.Decimal) {
	v, _ := amount.Abs().Float64()
	p.volume.WithLabelValues(op, string(currency)).Add(v)
}

// ObserveHTTP records one served request.
func (p *Prometheus) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	p.httpTotal.WithLabelValues(method, route, status).Inc()
	p.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveOperation(string, string, time.Duration)                  {}
func (Nop) AddVolume(string, domain.Currency, decimal.Decimal)              {}
func (Nop) ObserveHTTP(method, route, status string, elapsed time.Duration) {}
