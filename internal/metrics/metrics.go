// Package metrics exposes Prometheus collectors for screening runs and data collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every collector the service exports.
type Registry struct {
	reg *prometheus.Registry

	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	PairsEvaluated prometheus.Counter
	PairsSkipped   *prometheus.CounterVec
	Cointegrated   prometheus.Gauge
	LastSuccess    prometheus.Gauge
	CandlesFetched *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
}

// New creates and registers all collectors on a dedicated registry.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_screening_runs_total",
				Help: "Screening runs by outcome",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pairsentinel_screening_duration_seconds",
				Help:    "Wall time of completed screening runs",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		PairsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pairsentinel_pairs_evaluated_total",
				Help: "Candidate pairs run through the cointegration test",
			},
		),
		PairsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_pairs_skipped_total",
				Help: "Candidate pairs skipped by reason",
			},
			[]string{"reason"},
		),
		Cointegrated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairsentinel_cointegrated_pairs",
				Help: "Rows in the most recently persisted result table",
			},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairsentinel_last_success_timestamp_seconds",
				Help: "Unix time of the last successful screening run",
			},
		),
		CandlesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_candles_fetched_total",
				Help: "Candles received from the market-data provider",
			},
			[]string{"provider"},
		),
		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_fetch_errors_total",
				Help: "Failed symbol fetches by provider",
			},
			[]string{"provider"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairsentinel_notifications_total",
				Help: "Report deliveries by channel and outcome",
			},
			[]string{"channel", "status"},
		),
	}

	r.reg.MustRegister(
		r.Runs, r.RunDuration, r.PairsEvaluated, r.PairsSkipped, r.Cointegrated,
		r.LastSuccess, r.CandlesFetched, r.FetchErrors, r.Notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry for the HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveRun records the outcome of one screening run.
func (r *Registry) ObserveRun(ok bool, d time.Duration, rows int) {
	if r == nil {
		return
	}
	if !ok {
		r.Runs.WithLabelValues("failure").Inc()
		return
	}
	r.Runs.WithLabelValues("success").Inc()
	r.RunDuration.Observe(d.Seconds())
	r.Cointegrated.Set(float64(rows))
	r.LastSuccess.SetToCurrentTime()
}

// PairEvaluated counts one tested pair.
func (r *Registry) PairEvaluated() {
	if r == nil {
		return
	}
	r.PairsEvaluated.Inc()
}

// PairSkipped counts one skipped pair.
func (r *Registry) PairSkipped(reason string) {
	if r == nil {
		return
	}
	r.PairsSkipped.WithLabelValues(reason).Inc()
}

// Fetched records a symbol fetch outcome.
func (r *Registry) Fetched(provider string, candles int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.FetchErrors.WithLabelValues(provider).Inc()
		return
	}
	r.CandlesFetched.WithLabelValues(provider).Add(float64(candles))
}

// Notified records a report delivery.
func (r *Registry) Notified(channel string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.Notifications.WithLabelValues(channel, status).Inc()
}
