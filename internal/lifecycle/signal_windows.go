//go:build windows

package lifecycle

import "os"

// Windows has no job-control signals; transitions come from Emit only.
func lifecycleSignals() []os.Signal {
	return nil
}

func (h *SignalHost) handle(os.Signal) {}
