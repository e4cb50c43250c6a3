package updater

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner returns the queued errors in order, then succeeds.
type scriptedRunner struct {
	errs  []error
	calls int
	opts  []CycleOptions
}

func (r *scriptedRunner) RunUpdateCycle(ctx context.Context, opts CycleOptions) (bool, error) {
	r.calls++
	r.opts = append(r.opts, opts)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return false, err
	}
	return true, nil
}

func TestRunWithRetry_ExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	svc := &fakeService{checkErr: boom}
	c, state, _ := newTestCoordinator(svc)
	logs := &memSink{}
	rec := &countingRecorder{}

	applied, attempts, err := RunWithRetry(context.Background(), c,
		CycleOptions{ThrowOnError: true, Startup: true},
		RetryPolicy{MaxRetries: 2, Logs: logs, Recorder: rec})

	assert.False(t, applied)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, boom)
	checks, _, _ := svc.calls()
	assert.Equal(t, 3, checks)
	assert.Equal(t, 2, rec.retries)
	assert.True(t, logs.contains("retrying update (1/2)"))
	assert.True(t, logs.contains("retrying update (2/2)"))
	assert.False(t, state.Updating())
}

func TestRunWithRetry_StopsOnSuccess(t *testing.T) {
	r := &scriptedRunner{errs: []error{errors.New("first")}}

	applied, attempts, err := RunWithRetry(context.Background(), r, CycleOptions{Startup: true}, RetryPolicy{MaxRetries: 3})

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 2, attempts)
	for _, o := range r.opts {
		assert.True(t, o.Startup)
	}
}

func TestRunWithRetry_SwallowedErrorsNeverRetry(t *testing.T) {
	svc := &fakeService{checkErr: errors.New("boom")}
	c, _, _ := newTestCoordinator(svc)

	applied, attempts, err := RunWithRetry(context.Background(), c, CycleOptions{}, RetryPolicy{MaxRetries: 3})

	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, attempts)
}

func TestRunWithRetry_ZeroAndNegativeRetries(t *testing.T) {
	for _, n := range []int{0, -5} {
		r := &scriptedRunner{errs: []error{errors.New("a"), errors.New("b")}}
		_, attempts, err := RunWithRetry(context.Background(), r, CycleOptions{}, RetryPolicy{MaxRetries: n})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	}
}

func TestRunWithRetry_BackOffStop(t *testing.T) {
	r := &scriptedRunner{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}

	_, attempts, err := RunWithRetry(context.Background(), r, CycleOptions{},
		RetryPolicy{MaxRetries: 5, BackOff: &backoff.StopBackOff{}})

	assert.EqualError(t, err, "a")
	assert.Equal(t, 1, attempts)
}

func TestRunWithRetry_ContextCancelledDuringWait(t *testing.T) {
	r := &scriptedRunner{errs: []error{errors.New("a"), errors.New("b")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, attempts, err := RunWithRetry(ctx, r, CycleOptions{},
		RetryPolicy{MaxRetries: 3, BackOff: backoff.NewConstantBackOff(time.Hour)})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRunWithRetry_WaitsBetweenAttempts(t *testing.T) {
	r := &scriptedRunner{errs: []error{errors.New("a")}}

	start := time.Now()
	applied, attempts, err := RunWithRetry(context.Background(), r, CycleOptions{},
		RetryPolicy{MaxRetries: 1, BackOff: backoff.NewConstantBackOff(20 * time.Millisecond)})

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
