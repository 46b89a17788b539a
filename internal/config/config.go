package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultTargetURL = "https://localhost:8000"
	DefaultRequests  = 5
)

// Config holds the parameters of one attack run. It is built once by the
// Loader and not mutated afterwards.
type Config struct {
	TargetURL      string        `mapstructure:"url"`
	Requests       int           `mapstructure:"requests"`
	Wait           int           `mapstructure:"wait"`  // milliseconds between worker launches
	Delay          int           `mapstructure:"delay"` // milliseconds between HEADERS and RST_STREAM
	Concurrency    int           `mapstructure:"concurrency"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
	Insecure       bool          `mapstructure:"insecure"`
	Proxy          string        `mapstructure:"proxy"`
	Retries        int           `mapstructure:"retries"`
	Verbose        bool          `mapstructure:"verbose"`
	JSONOutput     bool          `mapstructure:"json_output"`
	Dashboard      bool          `mapstructure:"dashboard"`
	ReportFile     string        `mapstructure:"report_file"`
	Thresholds     []string      `mapstructure:"thresholds"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	ConfigFile     string        `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export of per-worker spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either directly
// or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace context is added to the request
// HEADERS frame. Defaults to true whenever tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// LaunchInterval is the stagger between successive worker launches.
func (c Config) LaunchInterval() time.Duration {
	return time.Duration(c.Wait) * time.Millisecond
}

// ResetDelay is the pause between a worker's HEADERS and RST_STREAM frames.
func (c Config) ResetDelay() time.Duration {
	return time.Duration(c.Delay) * time.Millisecond
}

// Target is the resolved connection target.
type Target struct {
	Scheme    string
	Host      string
	Port      string
	Authority string
	Path      string
}

// TLS reports whether the target is dialled with TLS (https) or spoken to
// with prior knowledge in cleartext (http).
func (t Target) TLS() bool {
	return t.Scheme == "https"
}

// Address returns host:port for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// ParseTarget resolves a base URL into the pieces a worker needs.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "http" {
		return Target{}, fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	host := u.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("invalid url %q: missing host", raw)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if scheme == "http" {
			port = "80"
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return Target{
		Scheme:    scheme,
		Host:      host,
		Port:      port,
		Authority: u.Host,
		Path:      path,
	}, nil
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	target, err := ParseTarget(c.TargetURL)
	if err != nil {
		issues = append(issues, err.Error())
	} else if !isLoopback(target.Host) {
		warnings = append(warnings, fmt.Sprintf("WARNING: Target %s is not a loopback address. Ensure you have authorization to test the target system.", target.Authority))
	}

	if c.Requests > 10000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High request count configured (%d connections). Ensure you have authorization to test the target system.", c.Requests))
	}

	if len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, w)
		}
	}

	if c.Requests < 0 {
		issues = append(issues, "requests must be >= 0")
	}
	if c.Wait < 0 {
		issues = append(issues, "wait must be >= 0")
	}
	if c.Delay < 0 {
		issues = append(issues, "delay must be >= 0")
	}
	if c.Concurrency < 0 {
		issues = append(issues, "concurrency must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.ConnectTimeout < 0 {
		issues = append(issues, "connect-timeout must be >= 0")
	}
	if c.DrainTimeout < 0 {
		issues = append(issues, "drain-timeout must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if p := strings.TrimSpace(c.Proxy); p != "" {
		if u, err := url.Parse(p); err != nil || u.Host == "" {
			issues = append(issues, fmt.Sprintf("proxy %q must be a URL such as socks5://host:1080", p))
		}
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q must be grpc or http", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing sample_rate must be between 0.0 and 1.0")
	}
	return issues
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
