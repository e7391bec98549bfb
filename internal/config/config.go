// Package config loads the scheduling core's configuration surface
// (SPEC_FULL.md §6) from the environment into plain value structs,
// following the teacher family's getEnv-with-defaults idiom
// (services/waving-service/cmd/api/main.go loadConfig()) rather than a
// keyed bag. Config *files* are explicitly out of scope (spec.md §1).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Buffer holds the FSM thresholds and hysteresis band (§4.1, §4.2).
type Buffer struct {
	Capacity          int     `validate:"required,gt=0"`
	LowThreshold      float64 `validate:"gte=0,lte=1"`
	HighThreshold     float64 `validate:"gte=0,lte=1"`
	CriticalThreshold float64 `validate:"gte=0,lte=1"`
	DeadBand          float64 `validate:"gte=0,lte=1"`
}

// WeightThresholds resolves Open Question (c): weight-category boundaries
// as configuration rather than hard-coded constants.
type WeightThresholds struct {
	LightMaxKg  float64 `validate:"gt=0"`
	MediumMaxKg float64 `validate:"gtfield=LightMaxKg"`
}

// Timing holds the three control-loop cadences (§4.10).
type Timing struct {
	RealtimeCycle   time.Duration `validate:"required"`
	TacticalCycle   time.Duration `validate:"required"`
	HistoricalCycle time.Duration `validate:"required"`
}

// Wave holds wave-sizing parameters (§4.6).
type Wave struct {
	DurationMinutes   int `validate:"gt=0"`
	SafetyMarginSec   int `validate:"gte=0"`
	MaxPalletsPerWave int `validate:"gt=0"`
}

// Workers holds expected crew sizes (§6).
type Workers struct {
	ForkliftsCount int `validate:"gt=0"`
	PickersCount   int `validate:"gt=0"`
}

// Optimization tunes the assignment optimizer (§4.5).
type Optimization struct {
	WorkloadBalanceLambda float64       `validate:"gte=0"`
	MaxSolverTime         time.Duration `validate:"required"`
	WarmStartEnabled      bool
}

// Queueing holds M/M/c utilization warning bands (§6).
type Queueing struct {
	OverloadThreshold float64 `validate:"gt=0"`
	CriticalThreshold float64 `validate:"gt=0"`
}

// WmsSync holds WMS adapter ingestion cadences (§6).
type WmsSync struct {
	TasksInterval      time.Duration
	PickersInterval    time.Duration
	ForkliftsInterval  time.Duration
	BufferInterval     time.Duration
	AggregationInterval time.Duration
	Enabled            bool
}

// Historical holds storage housekeeping parameters (§6).
type Historical struct {
	RetentionDays        int
	ChunkIntervalDays    int
	CompressionEnabled   bool
	CompressionAfterDays int
}

// RouteStatistics tunes IQR trimming and confidence thresholds (§4.7/§4.9).
type RouteStatistics struct {
	IQRFactor        float64 `validate:"gt=0"`
	MinTripsForTrust int     `validate:"gt=0"`
}

// Mongo holds historical-store connection settings.
type Mongo struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Kafka holds the optional cross-service event republication settings
// (SPEC_FULL.md's Event bus expansion). Brokers == nil means bus-only.
type Kafka struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// WMS holds the external WMS adapter's connection settings (§6, consumed).
type WMS struct {
	BaseURL string
	Timeout time.Duration
}

// Config is the root configuration object composed of the enumerated
// groups from §6.
type Config struct {
	ServerAddr       string
	ReportsDir       string
	Buffer           Buffer
	WeightThresholds WeightThresholds
	Timing           Timing
	Wave             Wave
	Workers          Workers
	Optimization     Optimization
	Queueing         Queueing
	WmsSync          WmsSync
	Historical       Historical
	RouteStatistics  RouteStatistics
	Mongo            Mongo
	Kafka            Kafka
	WMS              WMS
}

// Load reads the full configuration surface from the environment,
// applying spec-derived defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8090"),
		ReportsDir: getEnv("REPORTS_DIR", "./reports"),
		Buffer: Buffer{
			Capacity:          getEnvInt("BUFFER_CAPACITY", 200),
			LowThreshold:      getEnvFloat("BUFFER_LOW_THRESHOLD", 0.3),
			HighThreshold:     getEnvFloat("BUFFER_HIGH_THRESHOLD", 0.7),
			CriticalThreshold: getEnvFloat("BUFFER_CRITICAL_THRESHOLD", 0.15),
			DeadBand:          getEnvFloat("BUFFER_DEAD_BAND", 0.05),
		},
		WeightThresholds: WeightThresholds{
			LightMaxKg:  getEnvFloat("WEIGHT_LIGHT_MAX_KG", 5),
			MediumMaxKg: getEnvFloat("WEIGHT_MEDIUM_MAX_KG", 20),
		},
		Timing: Timing{
			RealtimeCycle:   getEnvDuration("REALTIME_CYCLE_MS", 200*time.Millisecond),
			TacticalCycle:   getEnvDuration("TACTICAL_CYCLE_MS", 2*time.Second),
			HistoricalCycle: getEnvDuration("HISTORICAL_CYCLE_MS", 60*time.Second),
		},
		Wave: Wave{
			DurationMinutes:   getEnvInt("WAVE_DURATION_MINUTES", 60),
			SafetyMarginSec:   getEnvInt("WAVE_SAFETY_MARGIN_SECONDS", 300),
			MaxPalletsPerWave: getEnvInt("WAVE_MAX_PALLETS", 500),
		},
		Workers: Workers{
			ForkliftsCount: getEnvInt("FORKLIFTS_COUNT", 6),
			PickersCount:   getEnvInt("PICKERS_COUNT", 24),
		},
		Optimization: Optimization{
			WorkloadBalanceLambda: getEnvFloat("OPTIMIZATION_WORKLOAD_BALANCE_LAMBDA", 0.25),
			MaxSolverTime:         getEnvDuration("OPTIMIZATION_MAX_SOLVER_TIME_MS", 500*time.Millisecond),
			WarmStartEnabled:      getEnvBool("OPTIMIZATION_WARM_START_ENABLED", true),
		},
		Queueing: Queueing{
			OverloadThreshold: getEnvFloat("QUEUEING_OVERLOAD_THRESHOLD", 0.85),
			CriticalThreshold: getEnvFloat("QUEUEING_CRITICAL_THRESHOLD", 0.95),
		},
		WmsSync: WmsSync{
			TasksInterval:       getEnvDuration("WMS_SYNC_TASKS_INTERVAL_MS", 5*time.Second),
			PickersInterval:     getEnvDuration("WMS_SYNC_PICKERS_INTERVAL_MS", 5*time.Second),
			ForkliftsInterval:   getEnvDuration("WMS_SYNC_FORKLIFTS_INTERVAL_MS", 5*time.Second),
			BufferInterval:      getEnvDuration("WMS_SYNC_BUFFER_INTERVAL_MS", 1*time.Second),
			AggregationInterval: getEnvDuration("WMS_SYNC_AGGREGATION_INTERVAL_MS", 5*time.Minute),
			Enabled:             getEnvBool("WMS_SYNC_ENABLED", true),
		},
		Historical: Historical{
			RetentionDays:        getEnvInt("HISTORICAL_RETENTION_DAYS", 90),
			ChunkIntervalDays:    getEnvInt("HISTORICAL_CHUNK_INTERVAL_DAYS", 7),
			CompressionEnabled:   getEnvBool("HISTORICAL_COMPRESSION_ENABLED", true),
			CompressionAfterDays: getEnvInt("HISTORICAL_COMPRESSION_AFTER_DAYS", 14),
		},
		RouteStatistics: RouteStatistics{
			IQRFactor:        getEnvFloat("ROUTE_STATS_IQR_FACTOR", 1.5),
			MinTripsForTrust: getEnvInt("ROUTE_STATS_MIN_TRIPS", 20),
		},
		Mongo: Mongo{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "scheduler_core"),
			ConnectTimeout: getEnvDuration("MONGODB_CONNECT_TIMEOUT_MS", 10*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_EVENTS_TOPIC", "wms.scheduler.events"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		WMS: WMS{
			BaseURL: getEnv("WMS_BASE_URL", "http://localhost:8080"),
			Timeout: getEnvDuration("WMS_TIMEOUT_MS", 3*time.Second),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
