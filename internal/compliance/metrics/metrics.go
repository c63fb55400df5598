package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module.
// Tracks evaluation outcomes, per-module rejections, and evaluation latency.
type Metrics struct {
	Evaluations        *prometheus.CounterVec
	Rejections         *prometheus.CounterVec
	TransfersRecorded  prometheus.Counter
	EvaluationDuration prometheus.Histogram
	EnabledModules     *prometheus.GaugeVec
}

// New creates a new Metrics instance with all compliance metrics registered.
func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tokengate_evaluations_total",
			Help: "Total number of comprehensive transfer evaluations by outcome",
		}, []string{"outcome"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tokengate_rejections_total",
			Help: "Total number of transfer rejections by module and error kind",
		}, []string{"module", "kind"}),
		TransfersRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tokengate_transfers_recorded_total",
			Help: "Total number of transfers committed against rolling counters",
		}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokengate_evaluation_duration_seconds",
			Help:    "Duration of comprehensive transfer evaluations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		EnabledModules: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tokengate_enabled_modules",
			Help: "Number of currently enabled compliance modules per token",
		}, []string{"token"}),
	}
}

// IncrementEvaluation records an evaluation outcome ("passed" or "rejected").
func (m *Metrics) IncrementEvaluation(outcome string) {
	m.Evaluations.WithLabelValues(outcome).Inc()
}

// IncrementRejection records which module and rule rejected a transfer.
func (m *Metrics) IncrementRejection(module, kind string) {
	m.Rejections.WithLabelValues(module, kind).Inc()
}

// IncrementTransferRecorded records a committed transfer.
func (m *Metrics) IncrementTransferRecorded() {
	m.TransfersRecorded.Inc()
}

// ObserveEvaluation records the duration of an evaluation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveEvaluation(start time.Time) {
	m.EvaluationDuration.Observe(time.Since(start).Seconds())
}

// ModuleEnabled bumps the enabled-module gauge for a token.
func (m *Metrics) ModuleEnabled(token string) {
	m.EnabledModules.WithLabelValues(token).Inc()
}

// ModuleDisabled lowers the enabled-module gauge for a token.
func (m *Metrics) ModuleDisabled(token string) {
	m.EnabledModules.WithLabelValues(token).Dec()
}
