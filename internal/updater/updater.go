package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rennerdo30/relaunch/internal/logging"
	"github.com/rennerdo30/relaunch/internal/version"
)

// DevModeMessage is logged instead of contacting the service in development builds.
const DevModeMessage = "update checks are disabled in development mode"

// CycleOptions controls one update cycle.
type CycleOptions struct {
	// BeforeDownload runs right before the download starts. Optional.
	BeforeDownload func()

	// ThrowOnError returns cycle errors instead of swallowing them.
	ThrowOnError bool

	// Force downloads and applies even when the service reports no update.
	Force bool

	// Startup marks the cycle as the session's startup check. Informational.
	Startup bool
}

// CycleRunner runs update cycles.
type CycleRunner interface {
	RunUpdateCycle(ctx context.Context, opts CycleOptions) (bool, error)
}

// Coordinator runs check, download and apply cycles with at most one in flight.
type Coordinator struct {
	service  Service
	state    *State
	logs     LogSink
	recorder Recorder
	devMode  bool
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDevMode overrides the development-build detection.
func WithDevMode(enabled bool) Option {
	return func(c *Coordinator) {
		c.devMode = enabled
	}
}

// WithClock sets the time source (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithRecorder sets the cycle recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewCoordinator creates a Coordinator. Development mode defaults to the
// build's dev flag.
func NewCoordinator(service Service, state *State, logs LogSink, opts ...Option) *Coordinator {
	c := &Coordinator{
		service:  service,
		state:    state,
		logs:     logs,
		recorder: nopRecorder{},
		devMode:  version.IsDevBuild(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the shared updater state.
func (c *Coordinator) State() *State {
	return c.state
}

// RunUpdateCycle runs one check, download and apply cycle. It returns true
// only when the update was applied. Failures are logged and reported as
// false unless opts.ThrowOnError is set. A call made while another cycle is
// in flight returns false immediately without touching the service.
func (c *Coordinator) RunUpdateCycle(ctx context.Context, opts CycleOptions) (bool, error) {
	started := c.now()
	if !c.state.TryBegin(started) {
		c.logs.Append("update already in progress, skipping")
		c.recorder.CycleRejected()
		return false, nil
	}

	outcome := OutcomeFailed
	c.recorder.CycleStarted(c.state.LastCheck())
	defer func() {
		c.state.End()
		c.recorder.CycleFinished(outcome, c.now().Sub(started))
	}()

	log := logging.FromContext(ctx).With("component", "updater", "cycle_id", uuid.NewString(),
		"startup", opts.Startup, "force", opts.Force)
	c.logs.Append(fmt.Sprintf("checking for update (startup=%t, force=%t)", opts.Startup, opts.Force))
	log.Debug("Update cycle started")

	if c.devMode {
		c.logs.Append(DevModeMessage)
		outcome = OutcomeDisabled
		return false, nil
	}

	var err error
	outcome, err = c.cycle(ctx, opts)
	if err != nil {
		c.logs.Append("update failed: " + err.Error())
		log.Warn("Update cycle failed", "error", err)
		if opts.ThrowOnError {
			return false, err
		}
		return false, nil
	}

	switch outcome {
	case OutcomeApplied:
		c.logs.Append("update applied, restart handed off")
		log.Info("Update applied")
		return true, nil
	default:
		c.logs.Append("application is up to date")
		log.Debug("No update applied", "outcome", outcome)
		return false, nil
	}
}

func (c *Coordinator) cycle(ctx context.Context, opts CycleOptions) (Outcome, error) {
	avail, err := c.service.CheckForUpdate(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("check for update: %w", err)
	}

	if avail.IsAvailable {
		c.logs.Append(fmt.Sprintf("update available: %s", versionLabel(avail.Version)))
	} else {
		c.logs.Append("no update available")
		if !opts.Force {
			return OutcomeUpToDate, nil
		}
		c.logs.Append("forcing download although no update is available")
	}

	if opts.BeforeDownload != nil {
		opts.BeforeDownload()
	}

	c.logs.Append("downloading update")
	if err := c.service.FetchUpdate(ctx); err != nil {
		return OutcomeFailed, fmt.Errorf("fetch update: %w", err)
	}

	c.logs.Append("update downloaded, restarting")
	if err := c.service.ApplyUpdateAndRestart(ctx); err != nil {
		return OutcomeFailed, fmt.Errorf("apply update: %w", err)
	}

	return OutcomeApplied, nil
}

func versionLabel(v string) string {
	if v == "" {
		return "unknown version"
	}
	return v
}
