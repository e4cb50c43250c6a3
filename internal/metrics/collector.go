package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/updater"
)

// Collector records update cycles and samples process state periodically.
// It implements updater.Recorder.
type Collector struct {
	metrics   *Metrics
	state     *updater.State
	host      lifecycle.Host
	startTime time.Time
	now       func() time.Time
	ticker    *time.Ticker
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

var _ updater.Recorder = (*Collector)(nil)

// NewCollector creates a new metrics collector. state and host may be nil.
func NewCollector(metrics *Metrics, state *updater.State, host lifecycle.Host) *Collector {
	return &Collector{
		metrics:   metrics,
		state:     state,
		host:      host,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Start starts the metrics collector.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	c.running = true
	c.done = make(chan struct{})
	c.ticker = time.NewTicker(15 * time.Second)

	go c.collectLoop(c.done, c.ticker.C)
}

// Stop stops the metrics collector.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	close(c.done)
	c.ticker.Stop()
	c.running = false
}

func (c *Collector) collectLoop(done <-chan struct{}, tick <-chan time.Time) {
	c.collect()

	for {
		select {
		case <-done:
			return
		case <-tick:
			c.collect()
		}
	}
}

// collect performs a single metrics collection.
func (c *Collector) collect() {
	c.metrics.Uptime.Set(time.Since(c.startTime).Seconds())
	c.metrics.GoRoutines.Set(float64(runtime.NumGoroutine()))

	if c.state != nil {
		snap := c.state.Snapshot()
		if snap.LastCheck > 0 {
			c.metrics.LastCheckTimestamp.Set(float64(snap.LastCheck))
			c.metrics.SinceLastCheck.Set(float64(c.now().Unix() - snap.LastCheck))
		}
		if snap.Updating {
			c.metrics.CyclesInFlight.Set(1)
		} else {
			c.metrics.CyclesInFlight.Set(0)
		}
	}

	if c.host != nil {
		c.RecordAppState(c.host.Current())
	}
}

// RecordAppState marks current as the only active lifecycle state label.
func (c *Collector) RecordAppState(current lifecycle.AppState) {
	for _, s := range lifecycle.AllStates() {
		v := 0.0
		if s == current {
			v = 1
		}
		c.metrics.AppState.WithLabelValues(string(s)).Set(v)
	}
}

func (c *Collector) CycleStarted(lastCheck int64) {
	c.metrics.CyclesInFlight.Set(1)
	c.metrics.LastCheckTimestamp.Set(float64(lastCheck))
}

func (c *Collector) CycleFinished(outcome updater.Outcome, d time.Duration) {
	c.metrics.CyclesInFlight.Set(0)
	c.metrics.CyclesTotal.WithLabelValues(string(outcome)).Inc()
	c.metrics.CycleDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (c *Collector) CycleRejected() {
	c.metrics.CyclesTotal.WithLabelValues(string(updater.OutcomeRejected)).Inc()
}

func (c *Collector) RetryScheduled() {
	c.metrics.RetriesTotal.Inc()
}
