package adapthttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookstore/internal/app"
)

// Metrics holds the Prometheus metrics of the storefront. It also records
// checkout attempts for the orchestrator.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	CheckoutOutcomes *prometheus.CounterVec
	CheckoutSteps    *prometheus.HistogramVec
}

var _ app.CheckoutRecorder = (*Metrics)(nil)

// NewMetrics creates the metrics on a private registry that also carries the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry: reg,
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bookstore",
				Name:      "http_requests_total",
				Help:      "API requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bookstore",
				Name:      "http_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		CheckoutOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bookstore",
				Name:      "checkout_outcomes_total",
				Help:      "Checkout attempts by outcome",
			},
			[]string{"outcome"}, // success, failed, blocked
		),
		CheckoutSteps: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bookstore",
				Name:      "checkout_step_duration_seconds",
				Help:      "Duration of checkout collaborator calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step", "result"},
		),
	}
}

// TrackVisitors exposes the number of visitors held in memory.
func (m *Metrics) TrackVisitors(r *app.Registry) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "bookstore",
			Name:      "visitors_in_memory",
			Help:      "Visitors currently held in memory",
		},
		func() float64 { return float64(r.Len()) },
	)
}

// ObserveStep implements app.CheckoutRecorder.
func (m *Metrics) ObserveStep(step string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CheckoutSteps.WithLabelValues(step, result).Observe(d.Seconds())
}

// ObserveOutcome implements app.CheckoutRecorder.
func (m *Metrics) ObserveOutcome(outcome string) {
	m.CheckoutOutcomes.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// instrument records request count and duration under the route pattern.
func (m *Metrics) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
