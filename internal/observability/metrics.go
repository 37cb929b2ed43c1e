package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_risk"

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec // labels: provider, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec
	Reconciles       *prometheus.CounterVec // labels: outcome={complete,partial,unavailable,invalid}
	TimelineHours    prometheus.Histogram

	Predictions    *prometheus.CounterVec // labels: label
	FallbackScores prometheus.Counter
	RiskScore      prometheus.Histogram

	GeocodeCache *prometheus.CounterVec // labels: method, result={hit,miss}
	AlertsSent   *prometheus.CounterVec // labels: outcome
	WatchJobRuns prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Weather provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Weather provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		Reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_reconciles_total",
			Help:      "Timeline reconciliations by outcome.",
		}, []string{"outcome"}),
		TimelineHours: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timeline_hours",
			Help:      "Number of hours assembled per reconciled day.",
			Buckets:   []float64{0, 1, 6, 12, 18, 23, 24},
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Hazard predictions by classifier label.",
		}, []string{"label"}),
		FallbackScores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_scores_total",
			Help:      "Predictions answered with the fixed fallback risk score.",
		}),
		RiskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of computed risk scores.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "High-risk alerts by delivery outcome.",
		}, []string{"outcome"}),
		WatchJobRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_job_runs_total",
			Help:      "Completed runs of the scheduled watch job.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.Reconciles,
		m.TimelineHours,
		m.Predictions,
		m.FallbackScores,
		m.RiskScore,
		m.GeocodeCache,
		m.AlertsSent,
		m.WatchJobRuns,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
