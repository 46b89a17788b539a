package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/torosent/rapidreset/internal/attack"
	"github.com/torosent/rapidreset/internal/config"
	"github.com/torosent/rapidreset/internal/dashboard"
	"github.com/torosent/rapidreset/internal/metrics"
	"github.com/torosent/rapidreset/internal/output"
	"github.com/torosent/rapidreset/internal/threshold"
	"github.com/torosent/rapidreset/internal/tracing"
)

const (
	progressInterval = time.Second
	baseRetryDelay   = 100 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

// logger serialises failure and verbose frame lines from concurrent workers.
type logger struct {
	mu     sync.Mutex
	errOut io.Writer
	out    io.Writer
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	plan, err := attack.PlanFromConfig(cfg)
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "[rapidreset] tracing shutdown: %v\n", err)
		}
	}()
	plan.Tracer = tp.Tracer()
	plan.Propagate = tp.ShouldPropagate()

	log := &logger{errOut: stderr, out: stdout}
	if cfg.Verbose {
		plan.Logf = log.Logf
	}

	opts := attack.OptionsFromConfig(cfg)
	opts.Logger = log
	if cfg.Retries > 0 {
		opts.RetryDelay = newRetryDelay()
	}
	driver := attack.NewDriver(plan, opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(driver.Counters(), driver.Collector(), dashboard.RunConfig{
			TargetURL:   cfg.TargetURL,
			Requests:    cfg.Requests,
			Concurrency: cfg.Concurrency,
			Wait:        cfg.LaunchInterval(),
			Delay:       cfg.ResetDelay(),
			Retries:     cfg.Retries,
			ConfigFile:  cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard && !cfg.Verbose {
		progress = output.NewProgressReporter(driver.Counters(), cfg.Requests, progressInterval, log)
		progress.Start()
	}

	report := driver.Run(ctx)

	// The report is printed only after the terminal has been restored.
	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
	}
	return finish(stdout, cfg, report, thresholds)
}

func finish(stdout io.Writer, cfg *config.Config, report metrics.Report, thresholds []threshold.Threshold) error {
	results := threshold.NewEvaluator(thresholds).Evaluate(report)
	doc := output.NewJSONReport(report, results)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, doc); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, report)
		output.PrintThresholds(stdout, results)
	}

	if cfg.ReportFile != "" {
		if err := output.WriteReportFile(cfg.ReportFile, doc); err != nil {
			return err
		}
	}

	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}

// LogFailure reports a failed worker. Cancellation during shutdown is not a
// failure worth reporting.
func (l *logger) LogFailure(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.errOut, "[rapidreset] worker failed: %v\n", err)
}

// Write lets the progress line share stderr with failure lines.
func (l *logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errOut.Write(p)
}

func (l *logger) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, format+"\n", args...)
}

// newRetryDelay backs off exponentially from baseRetryDelay up to
// maxRetryDelay, plus up to 50% jitter so retries from a burst of failed
// connects spread out.
func newRetryDelay() func(attempt int, err error) time.Duration {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	return func(attempt int, _ error) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
		if backoff > maxRetryDelay || backoff <= 0 {
			backoff = maxRetryDelay
		}
		return backoff + source.jitter(backoff/2)
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
