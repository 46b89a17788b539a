package runner

import (
	"context"

	"golang.org/x/time/rate"
)

// launchPacer spaces successive launches using a rate.Limiter.
type launchPacer struct {
	limiter *rate.Limiter
}

func newLaunchPacer(opt Options) *launchPacer {
	return &launchPacer{limiter: opt.LimiterFactory(opt.LaunchInterval)}
}

func (p *launchPacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
