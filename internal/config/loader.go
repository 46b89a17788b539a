package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Precedence is defaults, then the config file, then flags set explicitly.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		TargetURL:      DefaultTargetURL,
		Requests:       DefaultRequests,
		ConnectTimeout: 10 * time.Second,
		Insecure:       true,
		ConfigFile:     configPath,
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, raw map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	settings, err := newFileSettings(raw)
	if err != nil {
		return err
	}

	readers := []func() error{
		func() error { return settings.readString(&cfg.TargetURL, "url", "target") },
		func() error { return settings.readInt(&cfg.Requests, "requests", "total") },
		func() error { return settings.readInt(&cfg.Wait, "wait") },
		func() error { return settings.readInt(&cfg.Delay, "delay") },
		func() error { return settings.readInt(&cfg.Concurrency, "concurrency") },
		func() error { return settings.readInt(&cfg.Retries, "retries") },
		func() error { return settings.readDuration(&cfg.ConnectTimeout, "connect_timeout") },
		func() error { return settings.readDuration(&cfg.DrainTimeout, "drain_timeout") },
		func() error { return settings.readBool(&cfg.Insecure, "insecure") },
		func() error { return settings.readBool(&cfg.Verbose, "verbose") },
		func() error { return settings.readBool(&cfg.JSONOutput, "json_output") },
		func() error { return settings.readBool(&cfg.Dashboard, "dashboard") },
		func() error { return settings.readString(&cfg.Proxy, "proxy") },
		func() error { return settings.readString(&cfg.ReportFile, "report_file") },
		func() error { return settings.readStrings(&cfg.Thresholds, "thresholds", "threshold") },
	}
	for _, read := range readers {
		if err := read(); err != nil {
			return err
		}
	}

	if block, ok := settings.find("tracing"); ok {
		tracing, err := parseTracing(block, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}
	return nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := newFileSettings(value)
	if err != nil {
		return base, err
	}
	out := base
	if err := settings.readString(&out.Endpoint, "endpoint"); err != nil {
		return base, err
	}
	if err := settings.readString(&out.Protocol, "protocol"); err != nil {
		return base, err
	}
	if err := settings.readString(&out.ServiceName, "service_name"); err != nil {
		return base, err
	}
	if err := settings.readFloat(&out.SampleRate, "sample_rate"); err != nil {
		return base, err
	}
	if err := settings.readBool(&out.Insecure, "insecure"); err != nil {
		return base, err
	}
	if _, ok := settings.find("propagate"); ok {
		var propagate bool
		if err := settings.readBool(&propagate, "propagate"); err != nil {
			return base, err
		}
		out.Propagate = &propagate
	}
	return out, nil
}
