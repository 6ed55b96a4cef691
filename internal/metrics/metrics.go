// Package metrics exposes scanner counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"AlertWatch/internal/model"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec // labels: outcome
	TickersScanned   prometheus.Counter
	TickerErrors     prometheus.Counter
	SkipsTotal       *prometheus.CounterVec // labels: reason
	AlertsTotal      prometheus.Counter
	AlertsSuppressed prometheus.Counter
	NotifyFailures   prometheus.Counter
	APICallsTotal    prometheus.Counter
	CycleDuration    prometheus.Histogram
	LastCycleTime    prometheus.Gauge
	CycleRunning     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them on reg. A nil reg uses a fresh
// private registry, which keeps tests independent.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertwatch_cycles_total",
			Help: "Scan cycles by outcome",
		}, []string{"outcome"}),
		TickersScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertwatch_tickers_scanned_total",
			Help: "Tickers evaluated",
		}),
		TickerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertwatch_ticker_errors_total",
			Help: "Tickers skipped because of fetch errors or panics",
		}),
		SkipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertwatch_skips_total",
			Help: "Evaluations that produced no signal, by reason",
		}, []string{"reason"}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertwatch_alerts_total",
			Help: "Alerts delivered",
		}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertwatch_alerts_suppressed_total",
			Help: "Signals suppressed by the cooldown store",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertwatch_notify_failures_total",
			Help: "Alert deliveries that failed",
		}),
		APICallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertwatch_api_calls_total",
			Help: "Market data requests issued",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertwatch_cycle_duration_seconds",
			Help:    "Wall time of a scan cycle including batch delays",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
		}),
		LastCycleTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertwatch_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished",
		}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertwatch_cycle_running",
			Help: "1 while a cycle is in progress",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.TickersScanned,
		m.TickerErrors,
		m.SkipsTotal,
		m.AlertsTotal,
		m.AlertsSuppressed,
		m.NotifyFailures,
		m.APICallsTotal,
		m.CycleDuration,
		m.LastCycleTime,
		m.CycleRunning,
	)
	return m
}

// ObserveCycle folds a finished cycle report into the counters.
func (m *Metrics) ObserveCycle(rep model.CycleReport) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(string(rep.Outcome)).Inc()
	m.TickersScanned.Add(float64(rep.TickersScanned))
	m.TickerErrors.Add(float64(rep.TickerErrors))
	m.AlertsTotal.Add(float64(rep.AlertsFired))
	m.AlertsSuppressed.Add(float64(rep.AlertsSuppressed))
	m.NotifyFailures.Add(float64(rep.NotifyFailures))
	m.APICallsTotal.Add(float64(rep.APICalls))
	if !rep.FinishedAt.IsZero() {
		m.CycleDuration.Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
		m.LastCycleTime.Set(float64(rep.FinishedAt.Unix()))
	}
}

// ObserveSkip counts one evaluation that did not fire.
func (m *Metrics) ObserveSkip(reason string) {
	if m == nil || reason == "" {
		return
	}
	m.SkipsTotal.WithLabelValues(reason).Inc()
}

// SetRunning flips the in-progress gauge.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.CycleRunning.Set(1)
		return
	}
	m.CycleRunning.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Timeout: 5 * time.Second})
}
