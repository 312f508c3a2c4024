package metrics

import "time"

// RunStatsdLogger periodically ships counter deltas and the occupancy
// gauge to statsd until the collector is stopped. Init must have been
// called first.
func RunStatsdLogger(c *Collector, interval time.Duration, segmentName string, occupancy func() uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tags := SegmentTag(segmentName)

	prev := Snapshot{}
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			cur := c.Snapshot()

			Count(KEY_GETS, int64(cur.Gets-prev.Gets), tags)
			Count(KEY_HITS, int64(cur.Hits-prev.Hits), tags)
			Count(KEY_SETS, int64(cur.Sets-prev.Sets), tags)
			Count(KEY_DELETES, int64(cur.Deletes-prev.Deletes), tags)
			Count(KEY_CLEARS, int64(cur.Clears-prev.Clears), tags)
			Count(KEY_OVERSIZE_COUNT, int64(cur.Oversize-prev.Oversize), tags)
			Count(KEY_TABLE_FULL, int64(cur.TableFull-prev.TableFull), tags)
			Gauge(KEY_HITRATE, cur.HitRate(), tags)
			if occupancy != nil {
				Gauge(KEY_OCCUPANCY, float64(occupancy()), tags)
			}

			prev = cur
		}
	}
}
