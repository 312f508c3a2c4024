package metrics

import (
	"time"

	"github.com/rs/zerolog/log"
)

// RunConsoleLogger periodically logs counter deltas until the collector is
// stopped. occupancy is sampled on every tick; pass nil when the caller
// has no live table.
func RunConsoleLogger(c *Collector, interval time.Duration, occupancy func() uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := Snapshot{}
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			cur := c.Snapshot()

			occ := uint64(0)
			if occupancy != nil {
				occ = occupancy()
			}

			log.Info().
				Uint64("gets", cur.Gets-prev.Gets).
				Uint64("hits", cur.Hits-prev.Hits).
				Uint64("sets", cur.Sets-prev.Sets).
				Uint64("deletes", cur.Deletes-prev.Deletes).
				Uint64("oversize", cur.Oversize-prev.Oversize).
				Uint64("table_full", cur.TableFull-prev.TableFull).
				Uint64("occupancy", occ).
				Float64("hitrate", cur.HitRate()).
				Msg("shmstore stats")

			prev = cur
		}
	}
}
