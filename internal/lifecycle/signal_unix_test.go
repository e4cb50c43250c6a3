//go:build !windows

package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSignalHost(t *testing.T) {
	h := NewSignalHost(Active)
	h.Start()
	defer h.Stop()

	states := make(chan AppState, 4)
	defer h.Subscribe(func(s AppState) { states <- s })()

	next := func() AppState {
		select {
		case s := <-states:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no lifecycle transition")
			return ""
		}
	}

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGUSR1))
	assert.Equal(t, Inactive, next())

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGUSR2))
	assert.Equal(t, Active, next())
	assert.Equal(t, Active, h.Current())
}

func TestSignalHost_StopIdempotent(t *testing.T) {
	h := NewSignalHost(Background)
	assert.Equal(t, Background, h.Current())

	h.Start()
	h.Stop()
	h.Stop()
}
