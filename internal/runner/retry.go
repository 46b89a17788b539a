package runner

import (
	"context"
	"time"
)

// FailureLogger logs failed workers.
type FailureLogger interface {
	LogFailure(err error)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

type retryWorker struct {
	inner  Worker
	policy RetryPolicy
}

// WithRetry wraps a Worker with retry capability.
func WithRetry(w Worker, policy RetryPolicy) Worker {
	if policy.MaxAttempts <= 1 {
		return w
	}
	return &retryWorker{inner: w, policy: policy}
}

func (r *retryWorker) Run(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		lastErr = r.inner.Run(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == r.policy.MaxAttempts {
			break
		}
		if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
			return lastErr
		}

		delay := r.policy.Delay
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, lastErr)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			}
		}
	}
	return lastErr
}

type loggingWorker struct {
	inner  Worker
	logger FailureLogger
}

// WithLogging wraps a Worker to log failures.
func WithLogging(w Worker, logger FailureLogger) Worker {
	if logger == nil {
		return w
	}
	return &loggingWorker{inner: w, logger: logger}
}

func (l *loggingWorker) Run(ctx context.Context) error {
	err := l.inner.Run(ctx)
	if err != nil {
		l.logger.LogFailure(err)
	}
	return err
}
