package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Load/demo harness for shmstore. Pick a plan with the PLAN env var:
//
//	PLAN=basic      fill/read/delete loop against one segment
//	PLAN=crossproc  parent plus worker processes on one shared segment
//	PLAN=freecache  same workload against freecache, for comparison
//
// Knobs (env): SEGMENT_NAME, MAX_KEYS, WORKERS, ITERATIONS.
func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	viper.SetDefault("SEGMENT_NAME", "shmstoretest")
	viper.SetDefault("MAX_KEYS", 100_000)
	viper.SetDefault("WORKERS", 4)
	viper.SetDefault("ITERATIONS", 1_000_000)
	viper.AutomaticEnv()

	plan := os.Getenv("PLAN")
	if plan == "" {
		plan = "basic"
	}
	switch plan {
	case "basic":
		planBasic()
	case "crossproc":
		planCrossproc()
	case "crossproc-worker":
		planCrossprocWorker()
	case "freecache":
		planFreecache()
	default:
		panic("invalid plan: " + plan)
	}
}
