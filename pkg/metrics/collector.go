package metrics

import (
	"time"
)

// Source exposes the client state sampled by the Collector
type Source interface {
	// DispatcherQueueLength returns the number of commands waiting to run
	DispatcherQueueLength() int
	// PendingPings returns the number of pings queued for upload
	PendingPings() int
	// ComponentStatus returns nil for every healthy component
	ComponentStatus() map[string]error
}

// Collector periodically samples a Source into gauges and the health registry
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	DispatcherQueueLength.Set(float64(c.source.DispatcherQueueLength()))
	PingsPending.Set(float64(c.source.PendingPings()))

	for name, err := range c.source.ComponentStatus() {
		SetComponentStatus(name, err)
	}
}
