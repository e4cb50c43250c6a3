// Package updatelog keeps the in-memory record of update lifecycle events.
package updatelog

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rennerdo30/relaunch/internal/logging"
)

// Sink is an append-only, unbounded list of log lines in insertion order.
type Sink struct {
	mu      sync.RWMutex
	entries []string
	echo    bool
	console *slog.Logger
	now     func() time.Time
	observe func(entry string)
}

// New creates a Sink. Echoed lines go to console, or to the "updates"
// component logger when console is nil.
func New(console *slog.Logger) *Sink {
	if console == nil {
		console = logging.WithComponent("updates")
	}
	return &Sink{
		console: console,
		now:     time.Now,
	}
}

// Append records msg with a timestamp and echoes it if echo is enabled.
func (s *Sink) Append(msg string) {
	line := s.now().Format(time.RFC3339) + " " + msg

	s.mu.Lock()
	s.entries = append(s.entries, line)
	echo, observe := s.echo, s.observe
	s.mu.Unlock()

	if echo {
		s.console.Info(msg)
	}
	if observe != nil {
		observe(line)
	}
}

// Observe registers fn to receive every entry appended from now on. fn runs
// on the appending goroutine and must not block. A nil fn removes the observer.
func (s *Sink) Observe(fn func(entry string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe = fn
}

// All returns a copy of every entry, oldest first.
func (s *Sink) All() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.entries))
	copy(result, s.entries)
	return result
}

// Len returns the number of entries.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetEcho enables or disables console echo.
func (s *Sink) SetEcho(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echo = enabled
}

// Echo reports whether console echo is enabled.
func (s *Sink) Echo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.echo
}
