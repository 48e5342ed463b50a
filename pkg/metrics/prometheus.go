package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	gradedTotal  *prometheus.CounterVec
	oracleErrors *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	runDuration  *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		gradedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_graded_forecasts_total",
				Help: "Total number of forecasts graded, by outcome",
			},
			[]string{"status"},
		),
		oracleErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_oracle_errors_total",
				Help: "Total number of price oracle failures",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "foresight_last_price",
				Help: "Last graded price for a symbol",
			},
			[]string{"symbol"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foresight_run_duration_seconds",
				Help:    "Duration of scheduled runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
	}
}

// RecordGraded records graded forecast outcomes.
func (r *Recorder) RecordGraded(status string, n int) {
	r.gradedTotal.WithLabelValues(status).Add(float64(n))
}

// RecordOracleError records a price oracle failure.
func (r *Recorder) RecordOracleError(kind string) {
	r.oracleErrors.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last graded price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordRunDuration records how long a scheduled run took.
func (r *Recorder) RecordRunDuration(job string, seconds float64) {
	r.runDuration.WithLabelValues(job).Observe(seconds)
}
