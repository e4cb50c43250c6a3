package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the startup retries.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackOff supplies the delay between attempts. Nil means no delay.
	BackOff backoff.BackOff

	// Logs receives one line per scheduled retry. Optional.
	Logs LogSink

	// Recorder counts scheduled retries. Optional.
	Recorder Recorder
}

// RunWithRetry runs the cycle and retries it while it returns an error, up to
// policy.MaxRetries times. Attempts are sequential. It returns the last
// cycle's result, the number of attempts made and, when every attempt failed,
// the last error.
func RunWithRetry(ctx context.Context, runner CycleRunner, opts CycleOptions, policy RetryPolicy) (bool, int, error) {
	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := policy.BackOff
	if b == nil {
		b = &backoff.ZeroBackOff{}
	}
	b.Reset()
	recorder := policy.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	var lastErr error
	attempts := 0
	for attempts <= maxRetries {
		attempts++
		applied, err := runner.RunUpdateCycle(ctx, opts)
		if err == nil {
			return applied, attempts, nil
		}
		lastErr = err

		if attempts > maxRetries {
			break
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			break
		}

		recorder.RetryScheduled()
		if policy.Logs != nil {
			policy.Logs.Append(fmt.Sprintf("retrying update (%d/%d) after error: %v", attempts, maxRetries, err))
		}
		if err := sleepContext(ctx, wait); err != nil {
			return false, attempts, err
		}
	}

	return false, attempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
