package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestAnalysisMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAnalysisMetrics(reg)
	m.Observe(OutcomeCompleted, 3*time.Second)
	m.Observe(OutcomeFailed, time.Second)
	m.Observe(OutcomeFailed, time.Second)
	m.AddMissingClauseFlags(2)
	m.AddMissingClauseFlags(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "clausewise_analysis_jobs_total", "outcome", OutcomeFailed); err != nil || got != 2 {
		t.Fatalf("expected failed=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "clausewise_analysis_jobs_total", "outcome", OutcomeCompleted); err != nil || got != 1 {
		t.Fatalf("expected completed=1, got %f err=%v", got, err)
	}

	hist := findMetricFamily(mfs, "clausewise_analysis_duration_seconds")
	if hist == nil || hist.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatal("expected one duration sample for the completed job only")
	}
	flags := findMetricFamily(mfs, "clausewise_analysis_missing_clause_flags_total")
	if flags == nil || flags.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatal("expected two missing clause flags")
	}
}

func TestAnalysisMetricsNilSafe(t *testing.T) {
	var m *AnalysisMetrics
	m.Observe(OutcomeCompleted, time.Second)
	m.AddMissingClauseFlags(3)
	NewAnalysisMetrics(nil).Observe(OutcomeFailed, time.Second)
}
