package lifecycle

import (
	"os"
	"os/signal"
	"sync"

	"github.com/rennerdo30/relaunch/internal/logging"
)

// SignalHost maps process signals to lifecycle transitions. See
// lifecycleSignals for the platform mapping.
type SignalHost struct {
	*Emitter

	sigCh     chan os.Signal
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSignalHost creates a SignalHost in the initial state.
func NewSignalHost(initial AppState) *SignalHost {
	return &SignalHost{
		Emitter: NewEmitter(initial),
		sigCh:   make(chan os.Signal, 4),
		done:    make(chan struct{}),
	}
}

// Start begins listening for lifecycle signals.
func (h *SignalHost) Start() {
	h.startOnce.Do(func() {
		signals := lifecycleSignals()
		if len(signals) == 0 {
			return
		}
		signal.Notify(h.sigCh, signals...)
		go h.loop()
	})
}

// Stop stops listening. It is safe to call more than once.
func (h *SignalHost) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigCh)
		close(h.done)
	})
}

func (h *SignalHost) loop() {
	for {
		select {
		case sig := <-h.sigCh:
			logging.Debug("Lifecycle signal received", "signal", sig)
			h.handle(sig)
		case <-h.done:
			return
		}
	}
}
