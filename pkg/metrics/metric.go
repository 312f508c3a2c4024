// Package metrics holds the store's operation counters and the loggers
// that periodically emit them to the console or a statsd agent.
package metrics

import (
	"os"
	"strings"
	"sync"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// shmstore metric keys
const (
	KEY_GETS           = "shmstore_gets"
	KEY_SETS           = "shmstore_sets"
	KEY_HITS           = "shmstore_hits"
	KEY_DELETES        = "shmstore_deletes"
	KEY_CLEARS         = "shmstore_clears"
	KEY_OVERSIZE_COUNT = "shmstore_oversize_count"
	KEY_TABLE_FULL     = "shmstore_table_full_count"
	KEY_OCCUPANCY      = "shmstore_occupancy"
	KEY_HITRATE        = "shmstore_hitrate"
)

// Tag keys
const (
	TagEnv     = "env"
	TagService = "service"
	TagSegment = "segment"
)

var (
	statsDClient  = getDefaultClient()
	samplingRate  = 1.0
	statsdAddress = "localhost:8125"
	appName       = ""
	initialized   = false
	once          sync.Once

	// When false, all Count/Gauge calls are no-ops. Controlled by the
	// SHMSTORE_METRICS_ENABLED env var ("true"/"1" to enable).
	metricsEnabled = loadMetricsEnabled()
)

func loadMetricsEnabled() bool {
	v := os.Getenv("SHMSTORE_METRICS_ENABLED")
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1"
}

// Init initializes the statsd client from viper config.
func Init() {
	if initialized {
		log.Debug().Msgf("Metrics already initialized!")
		return
	}
	once.Do(func() {
		var err error
		if rate := viper.GetFloat64("APP_METRIC_SAMPLING_RATE"); rate > 0 {
			samplingRate = rate
		}
		if addr := viper.GetString("STATSD_ADDRESS"); addr != "" {
			statsdAddress = addr
		}
		appName = viper.GetString("APP_NAME")
		globalTags := getGlobalTags()

		statsDClient, err = statsd.New(
			statsdAddress,
			statsd.WithTags(globalTags),
		)
		if err != nil {
			log.Panic().AnErr("StatsD client initialization failed", err)
		}
		log.Info().Msgf("Metrics client initialized with statsd address - %s, global tags - %v, "+
			"sampling rate - %f, shmstore metrics enabled - %v", statsdAddress, globalTags, samplingRate, metricsEnabled)
		initialized = true
	})
}

func getDefaultClient() *statsd.Client {
	client, _ := statsd.New("localhost:8125")
	return client
}

func getGlobalTags() []string {
	env := viper.GetString("APP_ENV")
	if len(env) == 0 {
		log.Warn().Msg("APP_ENV is not set")
	}
	service := viper.GetString("APP_NAME")
	if len(service) == 0 {
		log.Warn().Msg("APP_NAME is not set")
	}
	return []string{
		TagAsString(TagEnv, env),
		TagAsString(TagService, service),
	}
}

// Count increases metric counter by value. No-op when metrics are disabled.
func Count(name string, value int64, tags []string) {
	if !metricsEnabled {
		return
	}
	tags = append(tags, TagAsString(TagService, appName))
	err := statsDClient.Count(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().AnErr("Error occurred while doing statsd count", err)
	}
}

// Gauge sets a gauge value. No-op when metrics are disabled.
func Gauge(name string, value float64, tags []string) {
	if !metricsEnabled {
		return
	}
	tags = append(tags, TagAsString(TagService, appName))
	err := statsDClient.Gauge(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().AnErr("Error occurred while doing statsd gauge", err)
	}
}

// Enabled returns whether shmstore statsd metrics are enabled.
func Enabled() bool {
	return metricsEnabled
}

// TagAsString renders one key:value statsd tag.
func TagAsString(key, value string) string {
	return key + ":" + value
}

// SegmentTag builds the per-segment tag set.
func SegmentTag(name string) []string {
	return []string{TagAsString(TagSegment, name)}
}
