package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Meesho/BharatMLStack/shmstore"
)

// planCrossproc demonstrates the cross-process contract: the parent
// creates the segment, spawns WORKERS copies of this binary as real OS
// processes that attach and write disjoint key ranges, then reads every
// key back through its own mapping.
func planCrossproc() {
	name := fmt.Sprintf("%s-%d", viper.GetString("SEGMENT_NAME"), os.Getpid())
	maxKeys := viper.GetUint64("MAX_KEYS")
	workers := viper.GetInt("WORKERS")
	perWorker := int(maxKeys) / (workers + 1)

	store, err := shmstore.Open(shmstore.Config{Name: name, MaxKeys: maxKeys})
	if err != nil {
		panic(err)
	}
	defer store.Close()

	log.Info().Msgf("parent created segment %s, spawning %d worker processes", name, workers)

	start := time.Now()
	procs := make([]*exec.Cmd, workers)
	for w := 0; w < workers; w++ {
		cmd := exec.Command(os.Args[0])
		cmd.Env = append(os.Environ(),
			"PLAN=crossproc-worker",
			fmt.Sprintf("SEGMENT_NAME=%s", name),
			fmt.Sprintf("WORKER_ID=%d", w),
			fmt.Sprintf("WORKER_KEYS=%d", perWorker),
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			panic(err)
		}
		procs[w] = cmd
	}

	// The parent writes its own range concurrently with the children.
	for i := 0; i < perWorker; i++ {
		key := fmt.Sprintf("parent-%d", i)
		if !store.Set(key, []byte(key)) {
			panic("parent set failed at " + key)
		}
	}

	for _, cmd := range procs {
		if err := cmd.Wait(); err != nil {
			panic(err)
		}
	}

	// Verify every process's writes through the parent's mapping.
	missing := 0
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			key := fmt.Sprintf("worker%d-%d", w, i)
			if _, ok := store.Get(key); !ok {
				missing++
			}
		}
	}
	if missing > 0 {
		panic(fmt.Sprintf("%d worker keys not visible in parent", missing))
	}

	log.Info().Msgf("all %d keys from %d processes visible in %v, occupancy %d",
		(workers+1)*perWorker, workers+1, time.Since(start), store.Size())
}

func planCrossprocWorker() {
	name := viper.GetString("SEGMENT_NAME")
	id := viper.GetInt("WORKER_ID")
	count := viper.GetInt("WORKER_KEYS")

	store, err := shmstore.Open(shmstore.Config{Name: name, MaxKeys: 1})
	if err != nil {
		panic(err)
	}
	defer store.Close()

	if store.Creator() {
		panic("worker unexpectedly created the segment")
	}

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("worker%d-%d", id, i)
		if !store.Set(key, []byte(key)) {
			panic("worker set failed at " + key)
		}
	}
	log.Info().Msgf("worker %d wrote %d keys", id, count)
}
