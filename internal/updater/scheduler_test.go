package updater

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/relaunch/internal/lifecycle"
)

type schedulerFixture struct {
	svc       *fakeService
	clock     *fakeClock
	state     *State
	logs      *memSink
	scheduler *Scheduler
	order     []string
}

func newSchedulerFixture(t *testing.T, initial lifecycle.AppState) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		svc:   &fakeService{available: false},
		clock: newFakeClock(10_000),
	}
	c, state, logs := newTestCoordinator(f.svc, WithClock(f.clock.Now))
	f.state, f.logs = state, logs
	f.scheduler = NewScheduler(c, state, logs, initial, SchedulerConfig{
		MinRefreshSeconds: 300,
		Now:               f.clock.Now,
		Hooks: Hooks{
			BeforeCheck: func() { f.order = append(f.order, "before") },
			AfterCheck:  func() { f.order = append(f.order, "after") },
		},
	})
	return f
}

// primeLastCheck runs one cycle so lastCheck equals the current clock.
func (f *schedulerFixture) primeLastCheck(t *testing.T, c CycleRunner) {
	t.Helper()
	_, err := c.RunUpdateCycle(context.Background(), CycleOptions{})
	require.NoError(t, err)
}

func TestScheduler_RefreshWindow(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{name: "299 seconds", elapsed: 299 * time.Second, want: false},
		{name: "exactly 300 seconds", elapsed: 300 * time.Second, want: false},
		{name: "301 seconds", elapsed: 301 * time.Second, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSchedulerFixture(t, lifecycle.Active)
			f.primeLastCheck(t, f.scheduler.runner)
			checksBefore, _, _ := f.svc.calls()

			f.scheduler.HandleChange(context.Background(), lifecycle.Background)
			f.clock.Advance(tt.elapsed)
			got := f.scheduler.HandleChange(context.Background(), lifecycle.Active)

			assert.Equal(t, tt.want, got)
			checks, _, _ := f.svc.calls()
			if tt.want {
				assert.Equal(t, checksBefore+1, checks)
				assert.Equal(t, []string{"before", "after"}, f.order)
			} else {
				assert.Equal(t, checksBefore, checks)
				assert.Empty(t, f.order)
			}
		})
	}
}

func TestScheduler_ActiveToActiveNeverTriggers(t *testing.T) {
	f := newSchedulerFixture(t, lifecycle.Active)
	f.clock.Advance(24 * time.Hour)

	assert.False(t, f.scheduler.HandleChange(context.Background(), lifecycle.Active))
	checks, _, _ := f.svc.calls()
	assert.Zero(t, checks)
	assert.True(t, f.logs.contains("no check"))
}

func TestScheduler_InactiveEdgeTriggers(t *testing.T) {
	f := newSchedulerFixture(t, lifecycle.Inactive)

	// lastCheck is 0, so the window is long past.
	assert.True(t, f.scheduler.HandleChange(context.Background(), lifecycle.Active))
	checks, _, _ := f.svc.calls()
	assert.Equal(t, 1, checks)
}

func TestScheduler_BackgroundTransitionsDoNotTrigger(t *testing.T) {
	f := newSchedulerFixture(t, lifecycle.Active)

	assert.False(t, f.scheduler.HandleChange(context.Background(), lifecycle.Inactive))
	assert.False(t, f.scheduler.HandleChange(context.Background(), lifecycle.Background))
	assert.Equal(t, lifecycle.Background, f.scheduler.Previous())

	checks, _, _ := f.svc.calls()
	assert.Zero(t, checks)
}

func TestScheduler_PreviousUpdatedUnconditionally(t *testing.T) {
	f := newSchedulerFixture(t, lifecycle.Background)
	f.primeLastCheck(t, f.scheduler.runner)

	// Not due: no cycle, but previous state still moves to active.
	assert.False(t, f.scheduler.HandleChange(context.Background(), lifecycle.Active))
	assert.Equal(t, lifecycle.Active, f.scheduler.Previous())

	// Active -> active after the window: still no foreground edge.
	f.clock.Advance(time.Hour)
	assert.False(t, f.scheduler.HandleChange(context.Background(), lifecycle.Active))
}

func TestScheduler_ErrorsOnlyLogged(t *testing.T) {
	f := newSchedulerFixture(t, lifecycle.Background)
	f.svc.checkErr = errors.New("unreachable")
	f.scheduler.cfg.ThrowOnError = true

	assert.True(t, f.scheduler.HandleChange(context.Background(), lifecycle.Active))
	assert.True(t, f.logs.contains("unreachable"))
	assert.Equal(t, []string{"before", "after"}, f.order)
	assert.False(t, f.state.Updating())
}

func TestScheduler_NilHooks(t *testing.T) {
	c, state, logs := newTestCoordinator(&fakeService{available: true})
	s := NewScheduler(c, state, logs, lifecycle.Background, SchedulerConfig{MinRefreshSeconds: 300})

	assert.NotPanics(t, func() {
		assert.True(t, s.HandleChange(context.Background(), lifecycle.Active))
	})
}
