package metrics

import "sync/atomic"

// Collector accumulates operation counters for one store handle. All
// fields are updated atomically on the hot path; loggers read snapshots.
type Collector struct {
	Gets      atomic.Uint64
	Hits      atomic.Uint64
	Sets      atomic.Uint64
	Deletes   atomic.Uint64
	Clears    atomic.Uint64
	Oversize  atomic.Uint64
	TableFull atomic.Uint64

	stopCh chan struct{}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Gets      uint64
	Hits      uint64
	Sets      uint64
	Deletes   uint64
	Clears    uint64
	Oversize  uint64
	TableFull uint64
}

func NewCollector() *Collector {
	return &Collector{stopCh: make(chan struct{})}
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Gets:      c.Gets.Load(),
		Hits:      c.Hits.Load(),
		Sets:      c.Sets.Load(),
		Deletes:   c.Deletes.Load(),
		Clears:    c.Clears.Load(),
		Oversize:  c.Oversize.Load(),
		TableFull: c.TableFull.Load(),
	}
}

// HitRate returns hits/gets for the snapshot, 0 when there were no gets.
func (s Snapshot) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Gets)
}

// Stop terminates any loggers running against this collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}
