package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/logging"
)

// Hooks are optional side effects run around foreground-triggered checks.
// A nil hook is never invoked.
type Hooks struct {
	BeforeCheck    func()
	BeforeDownload func()
	AfterCheck     func()
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	MinRefreshSeconds int64
	ThrowOnError      bool
	Hooks             Hooks
	Now               func() time.Time
}

// Scheduler decides on each lifecycle transition whether to run a cycle.
// It is not safe for concurrent use; deliver events serially.
type Scheduler struct {
	runner CycleRunner
	state  *State
	logs   LogSink
	cfg    SchedulerConfig
	prev   lifecycle.AppState
}

// NewScheduler creates a Scheduler whose previous state is initial.
func NewScheduler(runner CycleRunner, state *State, logs LogSink, initial lifecycle.AppState, cfg SchedulerConfig) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		runner: runner,
		state:  state,
		logs:   logs,
		cfg:    cfg,
		prev:   initial,
	}
}

// Previous returns the last observed lifecycle state.
func (s *Scheduler) Previous() lifecycle.AppState {
	return s.prev
}

// HandleChange processes one lifecycle transition and reports whether a cycle
// was run. A cycle runs on a background-to-active edge once more than
// MinRefreshSeconds have elapsed since the last check.
func (s *Scheduler) HandleChange(ctx context.Context, next lifecycle.AppState) bool {
	prev := s.prev
	s.prev = next

	foreground := prev.IsBackgrounded() && next == lifecycle.Active
	elapsed := s.cfg.Now().Unix() - s.state.LastCheck()
	due := elapsed > s.cfg.MinRefreshSeconds

	if !foreground || !due {
		s.logs.Append(fmt.Sprintf("app state %s -> %s, no check (foreground=%t, %ds since last check)", prev, next, foreground, elapsed))
		return false
	}

	s.logs.Append(fmt.Sprintf("app returned to foreground after %ds, checking for update", elapsed))
	if s.cfg.Hooks.BeforeCheck != nil {
		s.cfg.Hooks.BeforeCheck()
	}

	_, err := s.runner.RunUpdateCycle(ctx, CycleOptions{
		BeforeDownload: s.cfg.Hooks.BeforeDownload,
		ThrowOnError:   s.cfg.ThrowOnError,
	})
	if err != nil {
		logging.Warn("Foreground update check failed", "error", err)
	}

	if s.cfg.Hooks.AfterCheck != nil {
		s.cfg.Hooks.AfterCheck()
	}
	return true
}
