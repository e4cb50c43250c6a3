package updater

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewState(t *testing.T) {
	s := NewState()
	assert.False(t, s.Updating())
	assert.Zero(t, s.LastCheck())
}

func TestState_TryBegin(t *testing.T) {
	s := NewState()
	now := time.Unix(1000, 0)

	assert.True(t, s.TryBegin(now))
	assert.True(t, s.Updating())
	assert.Equal(t, int64(1000), s.LastCheck())

	// Rejected while in flight, timestamp untouched.
	assert.False(t, s.TryBegin(now.Add(time.Minute)))
	assert.Equal(t, int64(1000), s.LastCheck())

	s.End()
	assert.False(t, s.Updating())
	assert.True(t, s.TryBegin(now.Add(time.Minute)))
	assert.Equal(t, int64(1060), s.LastCheck())
}

func TestState_LastCheckNeverDecreases(t *testing.T) {
	s := NewState()
	assert.True(t, s.TryBegin(time.Unix(2000, 0)))
	s.End()
	assert.True(t, s.TryBegin(time.Unix(1500, 0)))
	s.End()

	assert.Equal(t, int64(2000), s.LastCheck())
}

func TestState_ConcurrentTryBegin(t *testing.T) {
	s := NewState()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryBegin(time.Now()) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.Equal(t, Snapshot{Updating: true, LastCheck: s.LastCheck()}, s.Snapshot())
}
