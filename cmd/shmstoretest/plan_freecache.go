package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// planFreecache runs the basic plan's workload against an in-process
// freecache instance with a comparable footprint. Useful as a baseline:
// freecache is faster but private to one process, shmstore trades raw
// speed for cross-process sharing.
func planFreecache() {
	maxKeys := viper.GetInt("MAX_KEYS")
	workers := viper.GetInt("WORKERS")
	iterations := viper.GetInt("ITERATIONS")

	// Roughly the footprint of a shmstore segment of the same capacity.
	cache := freecache.NewCache(maxKeys * 344)

	prepop := maxKeys * 7 / 10
	log.Info().Msgf("prepopulating %d keys", prepop)
	for k := 0; k < prepop; k++ {
		key := []byte(fmt.Sprintf("key%d", k))
		if err := cache.Set(key, []byte(fmt.Sprintf("value%d", k)), 0); err != nil {
			panic(err)
		}
	}

	log.Info().Msgf("running %d iterations across %d workers", iterations, workers)
	start := time.Now()

	var gets, hits, sets uint64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w)))
			localGets, localHits, localSets := uint64(0), uint64(0), uint64(0)
			for i := 0; i < iterations/workers; i++ {
				k := rng.Intn(maxKeys)
				key := []byte(fmt.Sprintf("key%d", k))
				switch rng.Intn(10) {
				case 0:
					cache.Set(key, []byte(fmt.Sprintf("value%d-%d", k, i)), 0)
					localSets++
				case 1:
					cache.Del(key)
				default:
					if _, err := cache.Get(key); err == nil {
						localHits++
					}
					localGets++
				}
			}
			mu.Lock()
			gets += localGets
			hits += localHits
			sets += localSets
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	elapsed := time.Since(start)
	hitRate := 0.0
	if gets > 0 {
		hitRate = 100 * float64(hits) / float64(gets)
	}
	log.Info().Msgf("freecache done in %v: %d gets (%.2f%% hit), %d sets, %d entries, %.0f ops/sec",
		elapsed, gets, hitRate, sets, cache.EntryCount(),
		float64(iterations)/elapsed.Seconds())
}
