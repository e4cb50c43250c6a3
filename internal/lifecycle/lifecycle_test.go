package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppState(t *testing.T) {
	tests := []struct {
		in      string
		want    AppState
		wantErr bool
	}{
		{in: "active", want: Active},
		{in: " Background ", want: Background},
		{in: "INACTIVE", want: Inactive},
		{in: "suspended", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAppState(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsBackgrounded(t *testing.T) {
	assert.False(t, Active.IsBackgrounded())
	assert.True(t, Inactive.IsBackgrounded())
	assert.True(t, Background.IsBackgrounded())
	assert.Len(t, AllStates(), 3)
}

func TestEmitter_DeliversInOrder(t *testing.T) {
	e := NewEmitter(Active)
	assert.Equal(t, Active, e.Current())

	var got []AppState
	unsubscribe := e.Subscribe(func(s AppState) { got = append(got, s) })
	defer unsubscribe()

	e.Emit(Background)
	e.Emit(Active)
	e.Emit(Inactive)

	assert.Equal(t, []AppState{Background, Active, Inactive}, got)
	assert.Equal(t, Inactive, e.Current())
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter(Active)

	calls := 0
	unsubscribe := e.Subscribe(func(AppState) { calls++ })
	other := e.Subscribe(func(AppState) {})
	assert.Equal(t, 2, e.Listeners())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, e.Listeners())

	e.Emit(Background)
	assert.Zero(t, calls)

	other()
	assert.Zero(t, e.Listeners())
}

func TestEmitter_ListenerMaySubscribe(t *testing.T) {
	e := NewEmitter(Active)

	nested := 0
	e.Subscribe(func(AppState) {
		e.Subscribe(func(AppState) { nested++ })
	})

	e.Emit(Background)
	assert.Zero(t, nested)
	assert.Equal(t, 2, e.Listeners())
}
