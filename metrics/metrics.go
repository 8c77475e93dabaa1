package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fxquote"

// Metrics holds the service collectors.
// A nil *Metrics is valid and records nothing
type Metrics struct {
	gatherer prometheus.Gatherer

	quotesTotal        *prometheus.CounterVec
	quoteErrorsTotal   *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	rateFetchesTotal   *prometheus.CounterVec
	rateFetchDuration  *prometheus.HistogramVec
	ingestsTotal       *prometheus.CounterVec
	paymentsTotal      *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
}

// New registers the collectors with a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors with the given registry
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		quotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_total",
				Help:      "Number of computed quotes",
			},
			[]string{"method", "scenario", "direction", "calculator"},
		),
		quoteErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_errors_total",
				Help:      "Number of quote requests no calculator could serve",
			},
			[]string{"reason"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calculator_fallbacks_total",
				Help:      "Number of calculator failures recovered by the next calculator",
			},
			[]string{"calculator"},
		),
		rateFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_fetches_total",
				Help:      "Number of rate refreshes, by outcome",
			},
			[]string{"source", "outcome"},
		),
		rateFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_fetch_duration_seconds",
				Help:      "Time to refresh the spot rates",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		ingestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingests_total",
				Help:      "Number of provider ingest runs, by outcome",
			},
			[]string{"provider", "outcome"},
		),
		paymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_total",
				Help:      "Number of payment links issued, by outcome",
			},
			[]string{"outcome"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Number of operator notifications, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Handler returns the /metrics handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// QuoteComputed records a successful quote
func (m *Metrics) QuoteComputed(method, scenario, direction, calculator string) {
	if m == nil {
		return
	}

	m.quotesTotal.WithLabelValues(method, scenario, direction, calculator).Inc()
}

// QuoteFailed records a quote no calculator could serve
func (m *Metrics) QuoteFailed(reason string) {
	if m == nil {
		return
	}

	m.quoteErrorsTotal.WithLabelValues(reason).Inc()
}

// CalculatorFallback records a failed calculator
func (m *Metrics) CalculatorFallback(calculator string) {
	if m == nil {
		return
	}

	m.fallbacksTotal.WithLabelValues(calculator).Inc()
}

// RateFetched records a rate refresh and its latency
func (m *Metrics) RateFetched(source, outcome string, took time.Duration) {
	if m == nil {
		return
	}

	m.rateFetchesTotal.WithLabelValues(source, outcome).Inc()
	m.rateFetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

// Ingested records a provider ingest run
func (m *Metrics) Ingested(provider, outcome string) {
	if m == nil {
		return
	}

	m.ingestsTotal.WithLabelValues(provider, outcome).Inc()
}

// PaymentIssued records a payment issuance attempt
func (m *Metrics) PaymentIssued(outcome string) {
	if m == nil {
		return
	}

	m.paymentsTotal.WithLabelValues(outcome).Inc()
}

// Notified records an operator notification attempt
func (m *Metrics) Notified(outcome string) {
	if m == nil {
		return
	}

	m.notificationsTotal.WithLabelValues(outcome).Inc()
}
