package threshold

import (
	"strings"
	"testing"

	"github.com/torosent/rapidreset/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "reset delay percentile",
			input: "reset_delay:p99 < 5",
			want:  Threshold{Metric: "reset_delay", Aggregate: "p99", Operator: "<", Value: 5, Raw: "reset_delay:p99 < 5"},
		},
		{
			name:  "failure rate",
			input: "workers_failed:rate < 0.01",
			want:  Threshold{Metric: "workers_failed", Aggregate: "rate", Operator: "<", Value: 0.01, Raw: "workers_failed:rate < 0.01"},
		},
		{
			name:  "headers count without spaces",
			input: "headers_sent:count>=1000",
			want:  Threshold{Metric: "headers_sent", Aggregate: "count", Operator: ">=", Value: 1000, Raw: "headers_sent:count>=1000"},
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  rps:rate > 100  ",
			want:  Threshold{Metric: "rps", Aggregate: "rate", Operator: ">", Value: 100, Raw: "rps:rate > 100"},
		},
		{name: "empty", input: "", wantError: true},
		{name: "missing aggregate", input: "headers_sent < 5", wantError: true},
		{name: "unknown metric", input: "http_req_duration:p95 < 500", wantError: true},
		{name: "unknown aggregate", input: "reset_delay:p95 < 5", wantError: true},
		{name: "unknown operator", input: "rps:rate != 5", wantError: true},
		{name: "bad value", input: "rps:rate > 1.2.3", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantError {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	got, err := ParseMultiple([]string{"headers_sent:count == 10", "reset_delay:max < 50"})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	_, err = ParseMultiple([]string{"headers_sent:count == 10", "bogus", "rps:p99 < 1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "threshold[1]") {
		t.Errorf("error %q does not name the bad entry", err)
	}

	got, err = ParseMultiple(nil)
	if err != nil || got != nil {
		t.Errorf("ParseMultiple(nil) = %v, %v", got, err)
	}
}

func sampleReport() metrics.Report {
	return metrics.Report{
		Counters: metrics.CounterSnapshot{
			HeadersSent:    100,
			ResetsSent:     98,
			EventsReceived: 3,
			FramesReceived: 250,
		},
		WorkersLaunched: 100,
		WorkersFailed:   2,
		RequestsPerSec:  800,
		ResetDelay: metrics.LatencySummary{
			Count: 98, MinMs: 0.1, MeanMs: 0.4, P50Ms: 0.3, P90Ms: 0.8, P99Ms: 1.5, MaxMs: 2,
		},
		WorkerDuration: metrics.LatencySummary{Count: 100, MaxMs: 900},
	}
}

func TestEvaluator(t *testing.T) {
	ths, err := ParseMultiple([]string{
		"headers_sent:count == 100",
		"resets_sent:count >= 100",
		"workers_failed:rate <= 0.02",
		"rps:rate > 500",
		"reset_delay:p99 < 1",
		"worker_duration:max < 1000",
		"responses_received:count < 5",
	})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}

	results := NewEvaluator(ths).Evaluate(sampleReport())
	wantPass := []bool{true, false, true, true, false, true, true}
	if len(results) != len(wantPass) {
		t.Fatalf("got %d results, want %d", len(results), len(wantPass))
	}
	for i, r := range results {
		if r.Pass != wantPass[i] {
			t.Errorf("%s: Pass = %v (actual %.2f), want %v", r.Threshold.Raw, r.Pass, r.Actual, wantPass[i])
		}
	}
	if AllPassed(results) {
		t.Error("AllPassed() = true, want false")
	}
	if !strings.HasPrefix(results[0].Message, "✓") || !strings.HasPrefix(results[1].Message, "✗") {
		t.Errorf("unexpected messages: %q, %q", results[0].Message, results[1].Message)
	}
}

func TestEvaluatorNoThresholds(t *testing.T) {
	results := NewEvaluator(nil).Evaluate(sampleReport())
	if results != nil {
		t.Fatalf("Evaluate() = %v, want nil", results)
	}
	if !AllPassed(results) {
		t.Error("AllPassed(nil) = false")
	}
}

func TestExtractMetricValue(t *testing.T) {
	report := sampleReport()
	tests := []struct {
		metric, aggregate string
		want              float64
		wantErr           bool
	}{
		{"headers_sent", "count", 100, false},
		{"frames_received", "count", 250, false},
		{"workers_failed", "count", 2, false},
		{"workers_failed", "rate", 0.02, false},
		{"rps", "rate", 800, false},
		{"reset_delay", "avg", 0.4, false},
		{"reset_delay", "min", 0.1, false},
		{"reset_delay", "count", 98, false},
		{"headers_sent", "rate", 0, true},
		{"rps", "count", 0, true},
		{"workers_failed", "p99", 0, true},
	}
	for _, tt := range tests {
		got, err := extractMetricValue(Threshold{Metric: tt.metric, Aggregate: tt.aggregate}, report)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s:%s expected error", tt.metric, tt.aggregate)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s:%s error = %v", tt.metric, tt.aggregate, err)
			continue
		}
		if !compareValues(got, "==", tt.want) {
			t.Errorf("%s:%s = %v, want %v", tt.metric, tt.aggregate, got, tt.want)
		}
	}
}

func TestFailureRateWithNoWorkers(t *testing.T) {
	got, err := extractMetricValue(Threshold{Metric: "workers_failed", Aggregate: "rate"}, metrics.Report{})
	if err != nil || got != 0 {
		t.Fatalf("got %v, %v; want 0, nil", got, err)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		actual   float64
		op       string
		expected float64
		want     bool
	}{
		{1, "<", 2, true},
		{2, "<", 2, false},
		{2, "<=", 2, true},
		{3, ">", 2, true},
		{2, ">=", 2, true},
		{2, "==", 2, true},
		{2.0000000001, "==", 2, true},
		{2, "!=", 2, false},
	}
	for _, tt := range tests {
		if got := compareValues(tt.actual, tt.op, tt.expected); got != tt.want {
			t.Errorf("compareValues(%v %s %v) = %v, want %v", tt.actual, tt.op, tt.expected, got, tt.want)
		}
	}
}
