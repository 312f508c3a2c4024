package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Meesho/BharatMLStack/shmstore"
	"github.com/Meesho/BharatMLStack/shmstore/pkg/metrics"
)

func planBasic() {
	name := viper.GetString("SEGMENT_NAME")
	maxKeys := viper.GetUint64("MAX_KEYS")
	workers := viper.GetInt("WORKERS")
	iterations := viper.GetInt("ITERATIONS")

	collector := metrics.NewCollector()
	defer collector.Stop()

	store, err := shmstore.Open(shmstore.Config{
		Name:    name,
		MaxKeys: maxKeys,
		Metrics: collector,
	})
	if err != nil {
		panic(err)
	}
	defer store.Close()

	if metrics.Enabled() {
		metrics.Init()
		go metrics.RunStatsdLogger(collector, 10*time.Second, name, store.Size)
	}
	go metrics.RunConsoleLogger(collector, 5*time.Second, store.Size)

	// Prepopulate to ~70% occupancy.
	prepop := int(maxKeys * 7 / 10)
	log.Info().Msgf("prepopulating %d keys", prepop)
	for k := 0; k < prepop; k++ {
		key := fmt.Sprintf("key%d", k)
		if !store.Set(key, []byte(fmt.Sprintf("value%d", k))) {
			panic("prepopulate set failed at " + key)
		}
	}

	log.Info().Msgf("running %d iterations across %d workers", iterations, workers)
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < iterations/workers; i++ {
				k := rng.Intn(int(maxKeys))
				key := fmt.Sprintf("key%d", k)
				switch rng.Intn(10) {
				case 0:
					store.Set(key, []byte(fmt.Sprintf("value%d-%d", k, i)))
				case 1:
					store.Delete(key)
				default:
					store.Get(key)
				}
			}
		}(w)
	}
	wg.Wait()

	elapsed := time.Since(start)
	s := collector.Snapshot()
	log.Info().Msgf("done in %v: %d gets (%.2f%% hit), %d sets, %d deletes, %d table-full, occupancy %d/%d, %.0f ops/sec",
		elapsed, s.Gets, 100*s.HitRate(), s.Sets, s.Deletes, s.TableFull,
		store.Size(), store.MaxKeys(),
		float64(iterations)/elapsed.Seconds())
}
