package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rapidreset",
		Short:         "HTTP/2 rapid reset load generator",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Attack shape
	flags.Int("requests", DefaultRequests, "Number of requests (connections) to send")
	flags.String("url", DefaultTargetURL, "Server URL")
	flags.Int("wait", 0, "Wait time in milliseconds between starting workers")
	flags.Int("delay", 0, "Delay in milliseconds between sending HEADERS and RST_STREAM")
	flags.Int("concurrency", 0, "Maximum number of concurrent workers (0 means unbounded)")

	// Transport
	flags.Duration("connect-timeout", 10*time.Second, "TCP and TLS establishment timeout")
	flags.Duration("drain-timeout", 0, "Stop draining a connection after this long (0 waits for the server to close)")
	flags.Bool("insecure", true, "Skip TLS certificate verification")
	flags.String("proxy", "", "SOCKS5 proxy URL (e.g. socks5://127.0.0.1:1080)")
	flags.Int("retries", 0, "Number of connection retries per worker")

	// Output
	flags.BoolP("verbose", "v", false, "Log every frame sent and every response received")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.String("report-file", "", "Write the final report to a file (.json, .yaml or .yml)")
	flags.StringSlice("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'rps:rate > 500')")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS towards the OTLP collector")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.String("tracing-service-name", "", "Service name reported on spans")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("requests") {
		val, err := fs.GetInt("requests")
		if err != nil {
			return err
		}
		cfg.Requests = val
	}
	if fs.Changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("wait") {
		val, err := fs.GetInt("wait")
		if err != nil {
			return err
		}
		cfg.Wait = val
	}
	if fs.Changed("delay") {
		val, err := fs.GetInt("delay")
		if err != nil {
			return err
		}
		cfg.Delay = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("connect-timeout") {
		val, err := fs.GetDuration("connect-timeout")
		if err != nil {
			return err
		}
		cfg.ConnectTimeout = val
	}
	if fs.Changed("drain-timeout") {
		val, err := fs.GetDuration("drain-timeout")
		if err != nil {
			return err
		}
		cfg.DrainTimeout = val
	}
	if fs.Changed("insecure") {
		val, err := fs.GetBool("insecure")
		if err != nil {
			return err
		}
		cfg.Insecure = val
	}
	if fs.Changed("proxy") {
		val, err := fs.GetString("proxy")
		if err != nil {
			return err
		}
		cfg.Proxy = strings.TrimSpace(val)
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("report-file") {
		val, err := fs.GetString("report-file")
		if err != nil {
			return err
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}

	return nil
}
