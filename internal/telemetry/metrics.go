package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
)

// MetricsRegistry holds all Prometheus metrics for pointrun
type MetricsRegistry struct {
	registry *prometheus.Registry

	// Optimizer metrics
	Trials        *prometheus.CounterVec
	TrialDuration prometheus.Histogram
	BestFitness   prometheus.Gauge

	// Data plane
	ProviderRequests *prometheus.CounterVec

	// Simulation
	Trades *prometheus.CounterVec
}

// NewMetricsRegistry creates a registry with every pointrun collector registered
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		Trials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointrun_trials_total",
				Help: "Total number of optimizer trials by outcome",
			},
			[]string{"outcome"},
		),

		TrialDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pointrun_trial_duration_seconds",
				Help:    "Wall time of a single optimizer trial in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		BestFitness: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pointrun_best_fitness",
				Help: "Fitness of the best viable candidate of the last search",
			},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointrun_provider_requests_total",
				Help: "Total number of market data requests by provider and status",
			},
			[]string{"provider", "status"},
		),

		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointrun_trades_total",
				Help: "Total number of closed simulated trades by side",
			},
			[]string{"side"},
		),
	}

	m.registry.MustRegister(
		m.Trials,
		m.TrialDuration,
		m.BestFitness,
		m.ProviderRequests,
		m.Trades,
	)

	return m
}

// Registry exposes the underlying registry for gatherers and tests
func (m *MetricsRegistry) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTrial records one finished optimizer trial
func (m *MetricsRegistry) ObserveTrial(outcome string, duration time.Duration) {
	m.Trials.WithLabelValues(outcome).Inc()
	m.TrialDuration.Observe(duration.Seconds())
}

// ObserveBest publishes the winning fitness score
func (m *MetricsRegistry) ObserveBest(score float64) {
	m.BestFitness.Set(score)
}

// ObserveRequest counts a provider round trip
func (m *MetricsRegistry) ObserveRequest(provider, status string) {
	m.ProviderRequests.WithLabelValues(provider, status).Inc()
}

// ObserveTrade counts a closed trade; the symbol is not a label to keep cardinality bounded
func (m *MetricsRegistry) ObserveTrade(symbol string, trade sim.Trade) {
	m.Trades.WithLabelValues(string(trade.Side)).Inc()
}

// MetricsHandler serves the private registry in the Prometheus text format
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
