// Package lifecycle models application foreground/background transitions and
// the hosts that report them.
package lifecycle

import (
	"fmt"
	"strings"
	"sync"
)

// AppState is the application's lifecycle state.
type AppState string

const (
	Active     AppState = "active"
	Background AppState = "background"
	Inactive   AppState = "inactive"
)

// IsBackgrounded reports whether the state is inactive or background.
func (s AppState) IsBackgrounded() bool {
	return s == Inactive || s == Background
}

// AllStates returns every lifecycle state.
func AllStates() []AppState {
	return []AppState{Active, Inactive, Background}
}

// ParseAppState parses a lifecycle state name.
func ParseAppState(s string) (AppState, error) {
	switch AppState(strings.ToLower(strings.TrimSpace(s))) {
	case Active:
		return Active, nil
	case Background:
		return Background, nil
	case Inactive:
		return Inactive, nil
	default:
		return "", fmt.Errorf("unknown app state: %q", s)
	}
}

// Listener receives lifecycle transitions.
type Listener func(AppState)

// Host emits lifecycle transitions.
type Host interface {
	// Current returns the last reported state.
	Current() AppState

	// Subscribe registers l and returns a function that removes it.
	Subscribe(l Listener) (unsubscribe func())
}

// Emitter is an in-process Host driven by the embedding application.
type Emitter struct {
	mu        sync.Mutex
	current   AppState
	listeners map[int]Listener
	nextID    int
}

// NewEmitter creates an Emitter that starts in the given state.
func NewEmitter(initial AppState) *Emitter {
	return &Emitter{
		current:   initial,
		listeners: make(map[int]Listener),
	}
}

// Current returns the last emitted state.
func (e *Emitter) Current() AppState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Subscribe registers l. The returned function is safe to call more than once.
func (e *Emitter) Subscribe(l Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Emit records state and delivers it to every listener on the calling goroutine.
func (e *Emitter) Emit(state AppState) {
	e.mu.Lock()
	e.current = state
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// Listeners returns the number of registered listeners.
func (e *Emitter) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
