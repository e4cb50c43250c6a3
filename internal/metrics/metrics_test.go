package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/updater"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNew(t *testing.T) {
	m := New()
	require.NotNil(t, m)

	assert.NotNil(t, m.CyclesTotal)
	assert.NotNil(t, m.CycleDuration)
	assert.NotNil(t, m.CyclesInFlight)
	assert.NotNil(t, m.RetriesTotal)
	assert.NotNil(t, m.LastCheckTimestamp)
	assert.NotNil(t, m.SinceLastCheck)
	assert.NotNil(t, m.AppState)
	assert.NotNil(t, m.Uptime)
	assert.NotNil(t, m.GoRoutines)
	assert.NotNil(t, m.Registry())
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	c := NewCollector(m, nil, nil)
	c.CycleFinished(updater.OutcomeUpToDate, time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `relaunch_update_cycles_total{outcome="up_to_date"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollectorRecordsCycles(t *testing.T) {
	m := New()
	c := NewCollector(m, nil, nil)

	c.CycleStarted(1700)
	assert.Equal(t, 1.0, gaugeValue(t, m.CyclesInFlight))
	assert.Equal(t, 1700.0, gaugeValue(t, m.LastCheckTimestamp))

	c.CycleFinished(updater.OutcomeApplied, 2*time.Second)
	assert.Equal(t, 0.0, gaugeValue(t, m.CyclesInFlight))
	assert.Equal(t, 1.0, counterValue(t, m.CyclesTotal.WithLabelValues("applied")))

	c.CycleRejected()
	c.CycleRejected()
	assert.Equal(t, 2.0, counterValue(t, m.CyclesTotal.WithLabelValues("rejected")))

	c.RetryScheduled()
	assert.Equal(t, 1.0, counterValue(t, m.RetriesTotal))
}

func TestCollectorCollect(t *testing.T) {
	m := New()
	state := updater.NewState()
	require.True(t, state.TryBegin(time.Unix(1000, 0)))
	host := lifecycle.NewEmitter(lifecycle.Background)

	c := NewCollector(m, state, host)
	c.now = func() time.Time { return time.Unix(1030, 0) }
	c.collect()

	assert.Equal(t, 1000.0, gaugeValue(t, m.LastCheckTimestamp))
	assert.Equal(t, 30.0, gaugeValue(t, m.SinceLastCheck))
	assert.Equal(t, 1.0, gaugeValue(t, m.CyclesInFlight))
	assert.Greater(t, gaugeValue(t, m.GoRoutines), 0.0)
	assert.Equal(t, 1.0, gaugeValue(t, m.AppState.WithLabelValues("background")))
	assert.Equal(t, 0.0, gaugeValue(t, m.AppState.WithLabelValues("active")))

	state.End()
	host.Emit(lifecycle.Active)
	c.collect()
	assert.Equal(t, 0.0, gaugeValue(t, m.CyclesInFlight))
	assert.Equal(t, 1.0, gaugeValue(t, m.AppState.WithLabelValues("active")))
	assert.Equal(t, 0.0, gaugeValue(t, m.AppState.WithLabelValues("background")))
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(New(), nil, nil)

	c.Start()
	c.Start()
	assert.True(t, c.running)

	c.Stop()
	c.Stop()
	assert.False(t, c.running)

	// Restart after stop.
	c.Start()
	c.Stop()
}

func TestCollectorLoop(t *testing.T) {
	m := New()
	c := NewCollector(m, nil, nil)

	done := make(chan struct{})
	tick := make(chan time.Time)
	exited := make(chan struct{})
	go func() {
		c.collectLoop(done, tick)
		close(exited)
	}()

	tick <- time.Now()
	close(done)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("collect loop did not exit")
	}
	assert.Greater(t, gaugeValue(t, m.Uptime), 0.0)
}
