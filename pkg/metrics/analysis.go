package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRetried   = "retried"
	OutcomeSkipped   = "skipped"
)

// AnalysisMetrics tracks contract analysis jobs in the worker.
type AnalysisMetrics struct {
	outcomes    *prometheus.CounterVec
	duration    prometheus.Histogram
	synthesized prometheus.Counter
}

// NewAnalysisMetrics registers the analysis metrics on reg.
func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	if reg == nil {
		return &AnalysisMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "jobs_total",
		Help:      "Analysis jobs by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End-to-end analysis duration, download to persist.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	})
	synthesized := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "missing_clause_flags_total",
		Help:      "Risk flags synthesized for missing standard clauses.",
	})
	reg.MustRegister(outcomes, duration, synthesized)
	return &AnalysisMetrics{outcomes: outcomes, duration: duration, synthesized: synthesized}
}

// Observe records one finished job.
func (a *AnalysisMetrics) Observe(outcome string, elapsed time.Duration) {
	if a == nil || a.outcomes == nil {
		return
	}
	a.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome == OutcomeCompleted {
		a.duration.Observe(elapsed.Seconds())
	}
}

// AddMissingClauseFlags counts synthesized missing_clause flags.
func (a *AnalysisMetrics) AddMissingClauseFlags(n int) {
	if a == nil || a.synthesized == nil || n <= 0 {
		return
	}
	a.synthesized.Add(float64(n))
}
