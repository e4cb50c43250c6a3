package updater

import (
	"context"
	"time"
)

// Availability is the result of an update check.
type Availability struct {
	IsAvailable bool   `json:"is_available"`
	Version     string `json:"version,omitempty"`
}

// Service is the remote update service. The coordinator is its only caller.
type Service interface {
	// CheckForUpdate reports whether a newer build is available.
	CheckForUpdate(ctx context.Context) (Availability, error)

	// FetchUpdate downloads and stages the build found by the last check.
	FetchUpdate(ctx context.Context) error

	// ApplyUpdateAndRestart restarts the process into the staged build. On
	// success it normally does not return; a nil return means the restart
	// has been handed off to a replacement process.
	ApplyUpdateAndRestart(ctx context.Context) error
}

// LogSink receives human-readable update log lines.
type LogSink interface {
	Append(msg string)
}

// Outcome labels how a cycle ended.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	OutcomeDisabled Outcome = "disabled"
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeFailed   Outcome = "failed"
)

// Recorder observes cycle activity, typically for metrics.
type Recorder interface {
	CycleStarted(lastCheck int64)
	CycleFinished(outcome Outcome, elapsed time.Duration)
	CycleRejected()
	RetryScheduled()
}

type nopRecorder struct{}

func (nopRecorder) CycleStarted(int64) {}
func (nopRecorder) CycleFinished(Outcome, time.Duration) {}
func (nopRecorder) CycleRejected() {}
func (nopRecorder) RetryScheduled() {}
