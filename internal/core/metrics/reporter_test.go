package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestReporter(t *testing.T) (*Reporter, *observer.ObservedLogs, *prometheus.Registry) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	reg := prometheus.NewRegistry()
	r := NewReporter(Options{
		FunctionName:     "analyzeMenu",
		CostPer1KTokens:  0.00001,
		CostThresholdEUR: 0.000045,
		LatencyBudget:    8 * time.Second,
		Registerer:       reg,
	}, zap.New(core))
	return r, logs, reg
}

func TestPerformanceGrade(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, GradeExcellent},
		{3 * time.Second, GradeExcellent},
		{3001 * time.Millisecond, GradeGood},
		{5 * time.Second, GradeGood},
		{8 * time.Second, GradeAcceptable},
		{8001 * time.Millisecond, GradePoor},
	}
	for _, tt := range tests {
		if got := PerformanceGrade(tt.d); got != tt.want {
			t.Errorf("PerformanceGrade(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestRecordCostPerToken(t *testing.T) {
	r, logs, _ := newTestReporter(t)

	used := r.Record(Invocation{Duration: time.Second, TokensUsed: 4000, Success: true})
	if want := used.CostEstimateEUR / 4000; used.CostPerToken != want {
		t.Errorf("cost per token = %v, want %v", used.CostPerToken, want)
	}

	unused := r.Record(Invocation{Duration: time.Second, ErrorKind: "invalid-argument"})
	if unused.CostPerToken != 0 || unused.CostEstimateEUR != 0 {
		t.Errorf("entry without tokens = %+v, want zero cost", unused)
	}
	entries := logs.FilterMessage("function_metrics").All()
	if got := entries[1].ContextMap()["cost_per_token"]; got != float64(0) {
		t.Errorf("logged cost_per_token = %v, want 0", got)
	}
}

func TestRecordSuccess(t *testing.T) {
	r, logs, _ := newTestReporter(t)

	entry := r.Record(Invocation{
		Duration:   1200 * time.Millisecond,
		TokensUsed: 2000,
		Success:    true,
		Tier:       "basic",
		Model:      "gemini-1.5-flash",
	})

	if entry.ExecutionTimeMs != 1200 || entry.TokensUsed != 2000 || !entry.Success {
		t.Errorf("entry = %+v", entry)
	}
	if entry.PerformanceGrade != GradeExcellent {
		t.Errorf("grade = %s", entry.PerformanceGrade)
	}
	if entry.CostEstimateEUR <= 0 || entry.CostEstimateEUR > 0.000045 {
		t.Errorf("cost = %v", entry.CostEstimateEUR)
	}

	if n := logs.FilterMessage("function_metrics").Len(); n != 1 {
		t.Fatalf("function_metrics logs = %d, want 1", n)
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 0 {
		t.Error("unexpected budget warning")
	}

	if got := testutil.ToFloat64(r.calls.WithLabelValues("true", "")); got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.tokens); got != 2000 {
		t.Errorf("tokens counter = %v, want 2000", got)
	}
}

func TestRecordFailure(t *testing.T) {
	r, logs, _ := newTestReporter(t)

	entry := r.Record(Invocation{Duration: 50 * time.Second, ErrorKind: "timeout"})

	if entry.Success || entry.Error != "timeout" || entry.PerformanceGrade != GradePoor {
		t.Errorf("entry = %+v", entry)
	}
	fields := logs.FilterMessage("function_metrics").All()[0].ContextMap()
	if fields["success"] != false || fields["error"] != "timeout" {
		t.Errorf("logged fields = %v", fields)
	}
	if logs.FilterMessage("Slow function execution").Len() != 1 {
		t.Error("expected a latency warning")
	}
	if got := testutil.ToFloat64(r.calls.WithLabelValues("false", "timeout")); got != 1 {
		t.Errorf("failure counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.warnings.WithLabelValues("latency")); got != 1 {
		t.Errorf("latency warnings = %v, want 1", got)
	}
}

func TestRecordCostWarning(t *testing.T) {
	r, logs, _ := newTestReporter(t)

	r.Record(Invocation{Duration: time.Second, TokensUsed: 10000, Success: true})

	if logs.FilterMessage("High cost function execution").Len() != 1 {
		t.Error("expected a cost warning")
	}
	if got := testutil.ToFloat64(r.warnings.WithLabelValues("cost")); got != 1 {
		t.Errorf("cost warnings = %v, want 1", got)
	}
}

func TestObserveValidationAndFallback(t *testing.T) {
	r, _, reg := newTestReporter(t)

	r.ObserveValidation([]string{"calories", "protein", "calories"}, 2)
	r.ObserveFallback()

	if got := testutil.ToFloat64(r.clamped.WithLabelValues("calories")); got != 2 {
		t.Errorf("clamped calories = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.dropped); got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.fallback); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if n, err := testutil.GatherAndCount(reg, "menu_validator_clamped_fields_total"); err != nil || n != 2 {
		t.Errorf("clamped series = %d (%v), want 2", n, err)
	}
}

func TestReporterWithoutRegistry(t *testing.T) {
	r := NewReporter(Options{}, nil)

	entry := r.Record(Invocation{Duration: time.Second, Success: true})
	r.ObserveValidation([]string{"fat"}, 1)
	r.ObserveFallback()

	if entry.FunctionName != "analyzeMenu" {
		t.Errorf("FunctionName = %q, want default", entry.FunctionName)
	}
}
