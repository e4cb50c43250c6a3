package updater

import (
	"sync"
	"time"
)

// State is the process-wide updater record shared by the coordinator and the
// scheduler. It is owned by the application shell and passed by pointer.
type State struct {
	mu        sync.Mutex
	updating  bool
	lastCheck int64
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	Updating  bool  `json:"updating"`
	LastCheck int64 `json:"last_check"`
}

// NewState returns a State with no check recorded.
func NewState() *State {
	return &State{}
}

// TryBegin admits a cycle if none is in flight. On admission the exclusivity
// flag and the last-check timestamp are written in the same critical section.
// A rejected call leaves the timestamp untouched.
func (s *State) TryBegin(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updating {
		return false
	}
	s.updating = true
	if ts := now.Unix(); ts > s.lastCheck {
		s.lastCheck = ts
	}
	return true
}

// End clears the exclusivity flag.
func (s *State) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updating = false
}

// Updating reports whether a cycle is in flight.
func (s *State) Updating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updating
}

// LastCheck returns the unix seconds of the last admitted cycle, or 0.
func (s *State) LastCheck() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheck
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Updating: s.updating, LastCheck: s.lastCheck}
}
