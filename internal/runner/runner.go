package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/remeh/sizedwaitgroup"
)

// Result captures execution summary.
type Result struct {
	Launched  int64 // workers started
	Completed int64 // workers that returned, successfully or not
	Failed    int64 // workers that returned an error
	Duration  time.Duration
}

// Succeeded is Completed minus Failed.
func (r Result) Succeeded() int64 {
	return r.Completed - r.Failed
}

// Runner launches Options.Total workers under the configured ceiling and
// launch interval.
type Runner struct {
	opt   Options
	pacer *launchPacer
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, pacer: newLaunchPacer(opt)}
}

// Run launches workers and blocks until every launched worker has returned.
// Cancelling ctx stops further launches; it does not abandon running workers.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	var launched, completed, failed atomic.Int64

	// sizedwaitgroup treats a limit <= 0 as unbounded.
	swg := sizedwaitgroup.New(r.opt.Concurrency)

	for seq := 0; seq < r.opt.Total; seq++ {
		if ctx.Err() != nil {
			break
		}
		// Take the slot first so the interval is measured between actual launches.
		if err := swg.AddWithContext(ctx); err != nil {
			break
		}
		if err := r.pacer.Wait(ctx); err != nil {
			swg.Done()
			break
		}

		var w Worker
		if r.opt.Factory != nil {
			w = r.opt.Factory(seq)
		}
		launched.Add(1)
		go func() {
			defer swg.Done()
			var err error
			if w != nil {
				err = w.Run(ctx)
			}
			if err != nil {
				failed.Add(1)
			}
			completed.Add(1)
		}()
	}
	swg.Wait()

	return Result{
		Launched:  launched.Load(),
		Completed: completed.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
	}
}
