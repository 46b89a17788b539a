package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/rapidreset/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://localhost:8000" {
		t.Errorf("TargetURL = %q, want https://localhost:8000", cfg.TargetURL)
	}
	if cfg.Requests != 5 {
		t.Errorf("Requests = %d, want 5", cfg.Requests)
	}
	if cfg.Wait != 0 || cfg.Delay != 0 || cfg.Concurrency != 0 {
		t.Errorf("wait/delay/concurrency = %d/%d/%d, want 0/0/0", cfg.Wait, cfg.Delay, cfg.Concurrency)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %s, want 10s", cfg.ConnectTimeout)
	}
	if !cfg.Insecure {
		t.Errorf("Insecure = false, want true")
	}
	if cfg.JSONOutput || cfg.Dashboard || cfg.Verbose {
		t.Errorf("output toggles should default to false: %+v", cfg)
	}
	if cfg.Tracing.Enabled() && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		t.Errorf("Tracing.Enabled() = true without endpoint")
	}
}

func TestLoadHelp(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadUnknownFlag(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"--bogus"}); err == nil {
		t.Fatal("Load(--bogus) error = nil, want error")
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"url": "https://127.0.0.1:8443/",
		"requests": 1000,
		"wait": 2,
		"delay": 1,
		"concurrency": 50,
		"drainTimeout": "2s",
		"retries": 3,
		"jsonOutput": true
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "--concurrency", "10"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://127.0.0.1:8443/" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Requests != 1000 {
		t.Errorf("Requests = %d, want 1000", cfg.Requests)
	}
	if cfg.LaunchInterval() != 2*time.Millisecond {
		t.Errorf("LaunchInterval() = %s, want 2ms", cfg.LaunchInterval())
	}
	if cfg.ResetDelay() != time.Millisecond {
		t.Errorf("ResetDelay() = %s, want 1ms", cfg.ResetDelay())
	}
	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want flag value 10", cfg.Concurrency)
	}
	if cfg.DrainTimeout != 2*time.Second {
		t.Errorf("DrainTimeout = %s, want 2s", cfg.DrainTimeout)
	}
	if cfg.Retries != 3 {
		t.Errorf("Retries = %d, want 3", cfg.Retries)
	}
	if !cfg.JSONOutput {
		t.Errorf("JSONOutput = false, want true")
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attack.yaml")
	content := `
url: http://localhost:8080
requests: 20
delay: 5
report_file: out.yaml
thresholds:
  - "rps:rate > 100"
tracing:
  endpoint: localhost:4318
  protocol: HTTP
  insecure: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "http://localhost:8080" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Requests != 20 || cfg.Delay != 5 {
		t.Errorf("requests/delay = %d/%d, want 20/5", cfg.Requests, cfg.Delay)
	}
	if cfg.ReportFile != "out.yaml" {
		t.Errorf("ReportFile = %q", cfg.ReportFile)
	}
	if len(cfg.Thresholds) != 1 || cfg.Thresholds[0] != "rps:rate > 100" {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Protocol != "http" {
		t.Errorf("Tracing.Protocol = %q, want http", cfg.Tracing.Protocol)
	}
	if !cfg.Tracing.Insecure || !cfg.Tracing.Enabled() {
		t.Errorf("Tracing = %+v, want enabled insecure", cfg.Tracing)
	}
	if !cfg.Tracing.ShouldPropagate() {
		t.Errorf("ShouldPropagate() = false, want default true when enabled")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := config.NewLoader().Load([]string{"--config", path}); err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
}

func TestParseTarget(t *testing.T) {
	cases := []struct {
		raw       string
		address   string
		authority string
		path      string
		tls       bool
	}{
		{"https://localhost:8000", "localhost:8000", "localhost:8000", "/", true},
		{"https://localhost:8000/", "localhost:8000", "localhost:8000", "/", true},
		{"https://example.com/api/v1?x=1", "example.com:443", "example.com", "/api/v1?x=1", true},
		{"http://127.0.0.1", "127.0.0.1:80", "127.0.0.1", "/", false},
		{"https://[::1]:9000/a", "[::1]:9000", "[::1]:9000", "/a", true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := config.ParseTarget(tc.raw)
			if err != nil {
				t.Fatalf("ParseTarget() error = %v", err)
			}
			if got.Address() != tc.address {
				t.Errorf("Address() = %q, want %q", got.Address(), tc.address)
			}
			if got.Authority != tc.authority {
				t.Errorf("Authority = %q, want %q", got.Authority, tc.authority)
			}
			if got.Path != tc.path {
				t.Errorf("Path = %q, want %q", got.Path, tc.path)
			}
			if got.TLS() != tc.tls {
				t.Errorf("TLS() = %v, want %v", got.TLS(), tc.tls)
			}
		})
	}
}

func TestParseTargetRejects(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "https://", "://bad"} {
		if _, err := config.ParseTarget(raw); err == nil {
			t.Errorf("ParseTarget(%q) error = nil, want error", raw)
		}
	}
}

func TestConfigValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		have config.Config
		want []string
	}{
		{
			name: "missing url",
			have: config.Config{},
			want: []string{"url"},
		},
		{
			name: "negative values",
			have: config.Config{
				TargetURL:   "https://localhost",
				Requests:    -1,
				Wait:        -1,
				Delay:       -1,
				Concurrency: -1,
				Retries:     -1,
			},
			want: []string{"requests", "wait", "delay", "concurrency", "retries"},
		},
		{
			name: "dashboard with json",
			have: config.Config{
				TargetURL:  "https://localhost",
				Dashboard:  true,
				JSONOutput: true,
			},
			want: []string{"mutually exclusive"},
		},
		{
			name: "bad proxy",
			have: config.Config{
				TargetURL: "https://localhost",
				Proxy:     "nohost",
			},
			want: []string{"proxy"},
		},
		{
			name: "tracing",
			have: config.Config{
				TargetURL: "https://localhost",
				Tracing:   config.TracingConfig{Protocol: "udp", SampleRate: 2},
			},
			want: []string{"protocol", "sample_rate"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.have.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	cfg := config.Config{TargetURL: config.DefaultTargetURL, Requests: config.DefaultRequests}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
