package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/rapidreset/internal/metrics"
)

// Threshold is a pass/fail assertion on the final report.
type Threshold struct {
	Metric    string  // e.g. "headers_sent", "reset_delay"
	Aggregate string  // e.g. "count", "rate", "p99"
	Operator  string  // "<", "<=", ">", ">=", "=="
	Value     float64 // right-hand side of the comparison
	Raw       string  // as given, for display
}

// Result is the outcome of one Threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator checks a set of thresholds against a report.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks every threshold against report.
func (e *Evaluator) Evaluate(report metrics.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, report))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, report metrics.Report) Result {
	actual, err := extractMetricValue(t, report)
	if err != nil {
		return Result{Threshold: t, Message: fmt.Sprintf("error: %v", err)}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

var (
	thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

	counterMetrics  = []string{"headers_sent", "resets_sent", "responses_received", "frames_received"}
	durationMetrics = []string{"reset_delay", "worker_duration"}
	otherMetrics    = []string{"workers_failed", "rps"}

	validAggregates = []string{"p50", "p90", "p99", "avg", "min", "max", "rate", "count"}
	validOperators  = []string{"<", "<=", ">", ">=", "=="}
)

// Parse parses a threshold string. Supported forms:
//   - "headers_sent:count >= 1000"
//   - "resets_sent:count == 1000"
//   - "responses_received:count < 10"
//   - "workers_failed:rate < 0.01"   (failed / launched)
//   - "workers_failed:count == 0"
//   - "rps:rate > 500"
//   - "reset_delay:p99 < 5"          (milliseconds)
//   - "worker_duration:max < 2000"   (milliseconds)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'reset_delay:p99 < 5')", s)
	}
	metric, aggregate, operator, valueStr := matches[1], matches[2], matches[3], matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}
	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(allMetrics(), ", "))
	}
	if !slices.Contains(validAggregates, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: %s)", aggregate, strings.Join(validAggregates, ", "))
	}
	if !slices.Contains(validOperators, operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses every string and reports all failures together.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

func allMetrics() []string {
	out := slices.Concat(counterMetrics, durationMetrics, otherMetrics)
	slices.Sort(out)
	return out
}

func isValidMetric(metric string) bool {
	return slices.Contains(counterMetrics, metric) ||
		slices.Contains(durationMetrics, metric) ||
		slices.Contains(otherMetrics, metric)
}

func extractMetricValue(t Threshold, r metrics.Report) (float64, error) {
	switch t.Metric {
	case "headers_sent":
		return countOnly(t, r.Counters.HeadersSent)
	case "resets_sent":
		return countOnly(t, r.Counters.ResetsSent)
	case "responses_received":
		return countOnly(t, r.Counters.EventsReceived)
	case "frames_received":
		return countOnly(t, r.Counters.FramesReceived)
	case "workers_failed":
		switch t.Aggregate {
		case "count":
			return float64(r.WorkersFailed), nil
		case "rate":
			if r.WorkersLaunched == 0 {
				return 0, nil
			}
			return float64(r.WorkersFailed) / float64(r.WorkersLaunched), nil
		}
		return 0, fmt.Errorf("unsupported aggregate %q for workers_failed (use 'count' or 'rate')", t.Aggregate)
	case "rps":
		if t.Aggregate != "rate" {
			return 0, fmt.Errorf("unsupported aggregate %q for rps (use 'rate')", t.Aggregate)
		}
		return float64(r.RequestsPerSec), nil
	case "reset_delay":
		return latency(t, r.ResetDelay)
	case "worker_duration":
		return latency(t, r.WorkerDuration)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func countOnly(t Threshold, v int64) (float64, error) {
	if t.Aggregate != "count" {
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count')", t.Aggregate, t.Metric)
	}
	return float64(v), nil
}

func latency(t Threshold, s metrics.LatencySummary) (float64, error) {
	switch t.Aggregate {
	case "p50":
		return s.P50Ms, nil
	case "p90":
		return s.P90Ms, nil
	case "p99":
		return s.P99Ms, nil
	case "avg":
		return s.MeanMs, nil
	case "min":
		return s.MinMs, nil
	case "max":
		return s.MaxMs, nil
	case "count":
		return float64(s.Count), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	const epsilon = 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
