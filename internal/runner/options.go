package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Worker performs one unit of work. It is run exactly once per launch.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context) error

func (f WorkerFunc) Run(ctx context.Context) error { return f(ctx) }

// Factory builds the worker for launch number seq (0-based).
type Factory func(seq int) Worker

// Options configure the Runner.
type Options struct {
	Total          int           // workers to launch
	Concurrency    int           // max launched-but-not-finished workers (0 means unbounded)
	LaunchInterval time.Duration // minimum gap between launches (0 means none)
	Factory        Factory       // worker constructor (required)
	// LimiterFactory is an optional injection point for tests.
	LimiterFactory func(interval time.Duration) *rate.Limiter
}

func (o *Options) normalize() {
	if o.Total < 0 {
		o.Total = 0
	}
	if o.Concurrency < 0 {
		o.Concurrency = 0
	}
	if o.LaunchInterval < 0 {
		o.LaunchInterval = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(interval time.Duration) *rate.Limiter {
			if interval <= 0 {
				return rate.NewLimiter(rate.Inf, 1)
			}
			// Burst 1 so a freed slot never releases a backlog of launches.
			return rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}
