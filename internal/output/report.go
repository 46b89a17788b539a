package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/torosent/rapidreset/internal/metrics"
	"github.com/torosent/rapidreset/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r metrics.Report) {
	c := r.Counters
	fmt.Fprintln(w, "\n--- Summary ---")
	fmt.Fprintf(w, "Frames sent: HEADERS = %d, RST_STREAM = %d\n", c.HeadersSent, c.ResetsSent)
	fmt.Fprintf(w, "Frames received: %d\n", c.EventsReceived)
	fmt.Fprintf(w, "Total time: %.2f seconds (%d rps)\n", r.Elapsed.Seconds(), r.RequestsPerSec)

	fmt.Fprintln(w, "\nWorkers:")
	fmt.Fprintf(w, "  Launched:        %d\n", r.WorkersLaunched)
	fmt.Fprintf(w, "  Completed:       %d\n", r.WorkersCompleted)
	fmt.Fprintf(w, "  Failed:          %d\n", r.WorkersFailed)
	fmt.Fprintf(w, "  Connections:     %d\n", c.Connections)

	fmt.Fprintln(w, "\nInbound:")
	fmt.Fprintf(w, "  Frames:          %d\n", c.FramesReceived)
	fmt.Fprintf(w, "  RST_STREAM:      %d\n", c.ResetsReceived)
	fmt.Fprintf(w, "  GOAWAY:          %d\n", c.GoAwaysReceived)
	fmt.Fprintf(w, "  Bytes:           %d sent, %d received\n", r.BytesSent, r.BytesReceived)

	if r.ResetDelay.Count > 0 {
		fmt.Fprintln(w, "\nReset Delay:")
		writeLatency(w, r.ResetDelay)
	}
	if r.WorkerDuration.Count > 0 {
		fmt.Fprintln(w, "\nWorker Duration:")
		writeLatency(w, r.WorkerDuration)
	}

	if len(r.PeerCodes) > 0 {
		fmt.Fprintln(w, "\nPeer Error Codes:")
		for _, pc := range r.PeerCodes {
			fmt.Fprintf(w, "  %s %s: %d\n", pc.Frame, pc.Code, pc.Count)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		kinds := make([]string, 0, len(r.Errors))
		for k := range r.Errors {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if r.Errors[kinds[i]] == r.Errors[kinds[j]] {
				return kinds[i] < kinds[j]
			}
			return r.Errors[kinds[i]] > r.Errors[kinds[j]]
		})
		for _, k := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", k, r.Errors[k])
		}
	}
}

func writeLatency(w io.Writer, s metrics.LatencySummary) {
	fmt.Fprintf(w, "  Min:             %.3fms\n", s.MinMs)
	fmt.Fprintf(w, "  Mean:            %.3fms\n", s.MeanMs)
	fmt.Fprintf(w, "  P50:             %.3fms\n", s.P50Ms)
	fmt.Fprintf(w, "  P90:             %.3fms\n", s.P90Ms)
	fmt.Fprintf(w, "  P99:             %.3fms\n", s.P99Ms)
	fmt.Fprintf(w, "  Max:             %.3fms\n", s.MaxMs)
}

// PrintThresholds lists threshold results.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	for _, r := range results {
		if r.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "\nThresholds: %d/%d passed\n", passed, len(results))
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// JSONReport is the machine-readable document: the report plus any
// threshold outcomes.
type JSONReport struct {
	metrics.Report `yaml:",inline"`

	Thresholds []ThresholdOutcome `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdOutcome is the serialised form of a threshold.Result.
type ThresholdOutcome struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// NewJSONReport combines a report with its threshold results.
func NewJSONReport(r metrics.Report, results []threshold.Result) JSONReport {
	out := JSONReport{Report: r}
	for _, res := range results {
		out.Thresholds = append(out.Thresholds, ThresholdOutcome{
			Threshold: res.Threshold.Raw,
			Actual:    res.Actual,
			Pass:      res.Pass,
		})
	}
	return out
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r JSONReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
