package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torosent/rapidreset/internal/config"
)

func newH2Server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func TestRunPrintsSummary(t *testing.T) {
	srv := newH2Server(t)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"--url", srv.URL,
		"--requests", "3",
		"--concurrency", "2",
		"--drain-timeout", "200ms",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"--- Summary ---", "Frames sent: HEADERS = 3, RST_STREAM = 3", "rps)"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(stderr.String(), "worker failed") {
		t.Errorf("unexpected worker failure: %s", stderr.String())
	}
}

func TestRunJSONOutputAndReportFile(t *testing.T) {
	srv := newH2Server(t)
	reportPath := filepath.Join(t.TempDir(), "run.json")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"--url", srv.URL,
		"--requests", "2",
		"--drain-timeout", "200ms",
		"--json-output",
		"--report-file", reportPath,
		"--threshold", "headers_sent:count == 2",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	doc := stdout.String()
	if got := gjson.Get(doc, "counters.headers_sent").Int(); got != 2 {
		t.Errorf("counters.headers_sent = %d, want 2\n%s", got, doc)
	}
	if !gjson.Get(doc, "thresholds.0.pass").Bool() {
		t.Errorf("threshold did not pass:\n%s", doc)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	if got := gjson.GetBytes(data, "counters.resets_sent").Int(); got != 2 {
		t.Errorf("report resets_sent = %d, want 2", got)
	}
}

func TestRunFailedThresholdReturnsError(t *testing.T) {
	srv := newH2Server(t)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"--url", srv.URL,
		"--requests", "1",
		"--drain-timeout", "100ms",
		"--threshold", "headers_sent:count > 5",
	}, &stdout, &stderr)
	if !errors.Is(err, errThresholdsFailed) {
		t.Fatalf("run() error = %v, want errThresholdsFailed", err)
	}
	if !strings.Contains(stdout.String(), "Thresholds: 0/1 passed") {
		t.Errorf("threshold results not printed:\n%s", stdout.String())
	}
}

func TestRunWorkerFailuresDoNotFailRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	// Nothing listens on port 1.
	err := run(context.Background(), []string{
		"--url", "https://127.0.0.1:1",
		"--requests", "2",
		"--connect-timeout", "1s",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.Count(stderr.String(), "[rapidreset] worker failed"); got != 2 {
		t.Errorf("logged %d failures, want 2:\n%s", got, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Frames sent: HEADERS = 0, RST_STREAM = 0") {
		t.Errorf("unexpected summary:\n%s", stdout.String())
	}
}

func TestRunConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative requests", []string{"--requests", "-1"}},
		{"bad scheme", []string{"--url", "ftp://localhost"}},
		{"bad threshold", []string{"--threshold", "bogus"}},
		{"unknown flag", []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), tt.args, &stdout, &stderr); err == nil {
				t.Fatal("run() expected error")
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}

func TestRunValidationErrorType(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--concurrency", "-2"}, &stdout, &stderr)
	var ve config.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("run() error = %v, want config.ValidationError", err)
	}
}

func TestLoggerSkipsCancellation(t *testing.T) {
	var errOut, out bytes.Buffer
	l := &logger{errOut: &errOut, out: &out}

	l.LogFailure(nil)
	l.LogFailure(fmt.Errorf("worker 1: %w", context.Canceled))
	if errOut.Len() != 0 {
		t.Fatalf("logged %q", errOut.String())
	}
	l.LogFailure(errors.New("boom"))
	if errOut.String() != "[rapidreset] worker failed: boom\n" {
		t.Errorf("logged %q", errOut.String())
	}

	l.Logf("[%d] Sent HEADERS", 1)
	if out.String() != "[1] Sent HEADERS\n" {
		t.Errorf("Logf wrote %q", out.String())
	}
}

func TestRetryDelayBounds(t *testing.T) {
	delay := newRetryDelay()
	for attempt := 0; attempt <= 12; attempt++ {
		d := delay(attempt, nil)
		n := attempt
		if n < 1 {
			n = 1
		}
		base := time.Duration(1<<uint(n-1)) * baseRetryDelay
		if base > maxRetryDelay {
			base = maxRetryDelay
		}
		if d < base || d >= base+base/2+1 {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, d, base, base+base/2)
		}
	}
}

func TestJitterSourceNil(t *testing.T) {
	var j *jitterSource
	if got := j.jitter(time.Second); got != 0 {
		t.Errorf("nil jitter = %v", got)
	}
}
