// Package session wires the update coordinator, the startup retry and the
// refresh scheduler into one activation bound to a lifecycle host.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/logging"
	"github.com/rennerdo30/relaunch/internal/updatelog"
	"github.com/rennerdo30/relaunch/internal/updater"
)

// Callbacks are optional embedder hooks. Nil callbacks are never invoked.
type Callbacks struct {
	BeforeCheck    func()
	BeforeDownload func()
	AfterCheck     func()
}

// Deps are the collaborators a Session needs.
type Deps struct {
	Coordinator *updater.Coordinator
	Logs        *updatelog.Sink
	Host        lifecycle.Host
	Recorder    updater.Recorder
	Now         func() time.Time
}

// Status summarizes a session for the status API.
type Status struct {
	Updating        bool   `json:"updating"`
	LastCheck       int64  `json:"last_check"`
	AppState        string `json:"app_state"`
	LogEntries      int    `json:"log_entries"`
	StartupDone     bool   `json:"startup_done"`
	StartupAttempts int    `json:"startup_attempts"`
	StartupError    string `json:"startup_error,omitempty"`
}

// Session is one activation of the update helper.
type Session struct {
	cfg       updater.Config
	callbacks Callbacks
	deps      Deps

	mu          sync.Mutex
	started     bool
	closed      bool
	unsubscribe func()

	// eventMu serializes lifecycle events into the scheduler.
	eventMu   sync.Mutex
	scheduler *updater.Scheduler

	startupDone     chan struct{}
	startupApplied  bool
	startupAttempts int
	startupErr      error
}

// New creates a Session. Call Start to activate it.
func New(cfg updater.Config, deps Deps, callbacks Callbacks) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		cfg:         cfg,
		callbacks:   callbacks,
		deps:        deps,
		startupDone: make(chan struct{}),
	}
}

// Start activates the session: it sets console echo, subscribes to the
// lifecycle host and, when configured, launches the startup check in the
// background. ctx bounds the startup check and every foreground check.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return updater.ErrAlreadyStarted
	}
	s.started = true

	s.deps.Logs.SetEcho(s.cfg.ShowDebugInConsole)

	state := s.deps.Coordinator.State()
	s.scheduler = updater.NewScheduler(s.deps.Coordinator, state, s.deps.Logs, s.deps.Host.Current(), updater.SchedulerConfig{
		MinRefreshSeconds: s.cfg.MinRefreshSeconds,
		ThrowOnError:      s.cfg.ThrowUpdateErrors,
		Now:               s.deps.Now,
		Hooks: updater.Hooks{
			BeforeCheck:    s.callbacks.BeforeCheck,
			BeforeDownload: s.callbacks.BeforeDownload,
			AfterCheck:     s.callbacks.AfterCheck,
		},
	})
	s.unsubscribe = s.deps.Host.Subscribe(func(next lifecycle.AppState) {
		s.handle(ctx, next)
	})

	if !s.cfg.UpdateOnStartup {
		close(s.startupDone)
		return nil
	}

	go s.runStartup(ctx)
	return nil
}

func (s *Session) handle(ctx context.Context, next lifecycle.AppState) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	if s.isClosed() {
		return
	}
	s.scheduler.HandleChange(ctx, next)
}

func (s *Session) runStartup(ctx context.Context) {
	defer close(s.startupDone)

	applied, attempts, err := updater.RunWithRetry(ctx, s.deps.Coordinator, updater.CycleOptions{
		BeforeDownload: s.callbacks.BeforeDownload,
		ThrowOnError:   s.cfg.ThrowUpdateErrors,
		Startup:        true,
	}, updater.RetryPolicy{
		MaxRetries: s.cfg.MaxRetries,
		BackOff:    s.cfg.RetryBackOff(),
		Logs:       s.deps.Logs,
		Recorder:   s.deps.Recorder,
	})
	if err != nil {
		logging.FromContext(ctx).Error("Startup update check failed", "attempts", attempts, "error", err)
	}

	s.mu.Lock()
	s.startupApplied = applied
	s.startupAttempts = attempts
	s.startupErr = err
	s.mu.Unlock()
}

// WaitStartup blocks until the startup check has finished and returns its
// result. With ThrowUpdateErrors the error of the last attempt is returned.
func (s *Session) WaitStartup(ctx context.Context) (bool, error) {
	select {
	case <-s.startupDone:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startupApplied, s.startupErr
}

// CheckNow runs one manual cycle. Errors are always returned to the caller
// and the cycle is never retried.
func (s *Session) CheckNow(ctx context.Context, force bool) (bool, error) {
	return s.deps.Coordinator.RunUpdateCycle(ctx, updater.CycleOptions{
		BeforeDownload: s.callbacks.BeforeDownload,
		ThrowOnError:   true,
		Force:          force,
	})
}

// Logs returns a snapshot of the update log.
func (s *Session) Logs() []string {
	return s.deps.Logs.All()
}

// Status returns the current session status.
func (s *Session) Status() Status {
	snap := s.deps.Coordinator.State().Snapshot()

	st := Status{
		Updating:   snap.Updating,
		LastCheck:  snap.LastCheck,
		AppState:   string(s.deps.Host.Current()),
		LogEntries: s.deps.Logs.Len(),
	}

	select {
	case <-s.startupDone:
		st.StartupDone = true
	default:
	}

	s.mu.Lock()
	st.StartupAttempts = s.startupAttempts
	if s.startupErr != nil {
		st.StartupError = s.startupErr.Error()
	}
	s.mu.Unlock()

	return st
}

// Close removes the lifecycle subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
