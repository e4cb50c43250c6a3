//go:build !windows

package lifecycle

import (
	"os"

	"golang.org/x/sys/unix"
)

// SIGTSTP backgrounds the app and then stops the process, SIGCONT brings it
// back to active. SIGUSR1 and SIGUSR2 set inactive and active without
// stopping the process.
func lifecycleSignals() []os.Signal {
	return []os.Signal{unix.SIGTSTP, unix.SIGCONT, unix.SIGUSR1, unix.SIGUSR2}
}

func (h *SignalHost) handle(sig os.Signal) {
	switch sig {
	case unix.SIGTSTP:
		h.Emit(Background)
		_ = unix.Kill(unix.Getpid(), unix.SIGSTOP)
	case unix.SIGCONT, unix.SIGUSR2:
		h.Emit(Active)
	case unix.SIGUSR1:
		h.Emit(Inactive)
	}
}
