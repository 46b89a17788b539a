package attack

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/rapidreset/internal/config"
	"github.com/torosent/rapidreset/internal/h2session"
	"github.com/torosent/rapidreset/internal/metrics"
	"github.com/torosent/rapidreset/internal/runner"
)

// DriverOptions control how workers are scheduled.
type DriverOptions struct {
	Requests       int
	Concurrency    int
	LaunchInterval time.Duration
	// Retries is the number of extra connection attempts per worker. Only
	// ConnectErrors are retried.
	Retries int
	// RetryDelay returns the pause before retry attempt (1-based). Nil
	// retries immediately.
	RetryDelay func(attempt int, err error) time.Duration
	Logger     runner.FailureLogger
}

// Driver runs one attack and produces its report.
type Driver struct {
	plan      Plan
	opts      DriverOptions
	counters  *metrics.Counters
	collector *metrics.Collector
}

// NewDriver creates the run's counters and collector unless plan already
// carries them.
func NewDriver(plan Plan, opts DriverOptions) *Driver {
	if plan.Counters == nil {
		plan.Counters = metrics.NewCounters()
	}
	if plan.Collector == nil {
		plan.Collector = metrics.NewCollector()
	}
	return &Driver{
		plan:      plan,
		opts:      opts,
		counters:  plan.Counters,
		collector: plan.Collector,
	}
}

// Counters exposes live counters for progress reporting.
func (d *Driver) Counters() *metrics.Counters {
	return d.counters
}

// Collector exposes the live collector for progress reporting.
func (d *Driver) Collector() *metrics.Collector {
	return d.collector
}

// Run launches every worker, waits for all of them and returns the report.
// Cancelling ctx stops new launches and closes open connections; the report
// covers whatever completed.
func (d *Driver) Run(ctx context.Context) metrics.Report {
	r := runner.New(runner.Options{
		Total:          d.opts.Requests,
		Concurrency:    d.opts.Concurrency,
		LaunchInterval: d.opts.LaunchInterval,
		Factory:        d.newWorker,
	})

	start := time.Now()
	res := r.Run(ctx)
	end := time.Now()

	return metrics.BuildReport(metrics.RunInfo{
		RunID:     ulid.Make().String(),
		Target:    d.plan.Target,
		Start:     start,
		End:       end,
		Launched:  res.Launched,
		Completed: res.Completed,
		Failed:    res.Failed,
	}, d.counters.Snapshot(), d.collector)
}

func (d *Driver) newWorker(seq int) runner.Worker {
	// Worker IDs are 1-based in logs and spans.
	id := seq + 1
	var w runner.Worker = runner.WorkerFunc(func(ctx context.Context) error {
		return NewWorker(id, &d.plan).Run(ctx)
	})
	if d.opts.Retries > 0 {
		w = runner.WithRetry(w, runner.RetryPolicy{
			MaxAttempts: d.opts.Retries + 1,
			ShouldRetry: isConnectError,
			DelayFunc:   d.opts.RetryDelay,
		})
	}
	return runner.WithLogging(d.recordWorker(w), d.opts.Logger)
}

// recordWorker records one lifetime and outcome per worker, covering every
// retry attempt.
func (d *Driver) recordWorker(w runner.Worker) runner.Worker {
	return runner.WorkerFunc(func(ctx context.Context) error {
		start := time.Now()
		err := w.Run(ctx)
		d.collector.RecordWorker(time.Since(start), err)
		return err
	})
}

func isConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// PlanFromConfig resolves the target and builds the dialer for cfg.
func PlanFromConfig(cfg *config.Config) (Plan, error) {
	target, err := config.ParseTarget(cfg.TargetURL)
	if err != nil {
		return Plan{}, err
	}
	dialer := &h2session.Dialer{
		Address:            target.Address(),
		ServerName:         target.Host,
		TLS:                target.TLS(),
		InsecureSkipVerify: cfg.Insecure,
		Timeout:            cfg.ConnectTimeout,
		Proxy:              cfg.Proxy,
	}
	return Plan{
		Dial:         DialWith(dialer),
		Scheme:       target.Scheme,
		Authority:    target.Authority,
		Path:         target.Path,
		Target:       cfg.TargetURL,
		ResetDelay:   cfg.ResetDelay(),
		DrainTimeout: cfg.DrainTimeout,
	}, nil
}

// OptionsFromConfig maps the scheduling settings of cfg.
func OptionsFromConfig(cfg *config.Config) DriverOptions {
	return DriverOptions{
		Requests:       cfg.Requests,
		Concurrency:    cfg.Concurrency,
		LaunchInterval: cfg.LaunchInterval(),
		Retries:        cfg.Retries,
	}
}
