package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-anomaly-etl/internal/snapshot"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Grid service source.
	GridBaseURL  string
	Dataset      string
	Variable     string
	FetchTimeout time.Duration

	// Snapshot disk cache; disabled when CacheDir is empty.
	CacheDir      string
	CacheTTL      time.Duration
	SnapshotCodec string

	// Climatology baseline period, inclusive calendar years.
	BaselineFrom int
	BaselineTo   int

	// Pipeline schedule and statistics.
	RunInterval time.Duration
	Percentiles []float64

	// Kafka sink configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Report rendering; disabled when ReportDir is empty.
	ReportDir string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("SNAPSHOT_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	runInterval, err := parsePositiveDuration("RUN_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}

	baselineFrom, err := parseIntEnv("BASELINE_FROM", 1991)
	if err != nil {
		return nil, err
	}
	baselineTo, err := parseIntEnv("BASELINE_TO", 2020)
	if err != nil {
		return nil, err
	}

	percentiles, err := parsePercentiles(envOrDefault("PERCENTILES", "1,25,50,75,99"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		GridBaseURL:  envOrDefault("GRID_BASE_URL", "http://localhost:8081"),
		Dataset:      envOrDefault("GRID_DATASET", "era5-monthly"),
		Variable:     envOrDefault("GRID_VARIABLE", "skt"),
		FetchTimeout: fetchTimeout,

		CacheDir:      os.Getenv("SNAPSHOT_CACHE_DIR"),
		CacheTTL:      cacheTTL,
		SnapshotCodec: envOrDefault("SNAPSHOT_CODEC", "zstd"),

		BaselineFrom: baselineFrom,
		BaselineTo:   baselineTo,

		RunInterval: runInterval,
		Percentiles: percentiles,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "climate-anomalies"),

		ReportDir: os.Getenv("REPORT_DIR"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.BaselineFrom > cfg.BaselineTo {
		return nil, fmt.Errorf("BASELINE_FROM %d is after BASELINE_TO %d", cfg.BaselineFrom, cfg.BaselineTo)
	}
	if !snapshot.KnownCodec(cfg.SnapshotCodec) {
		return nil, fmt.Errorf("invalid SNAPSHOT_CODEC %q, want one of %s",
			cfg.SnapshotCodec, strings.Join(snapshot.CodecNames(), ", "))
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}

	return cfg, nil
}

// envOrDefault returns the environment value for key, or fallback when unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parsePositiveDuration parses a duration environment variable that must be
// greater than zero.
func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// parseBrokers splits a comma-separated broker list, dropping empty entries.
func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePercentiles parses a comma-separated percentile list, each in [0, 100].
func parsePercentiles(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PERCENTILES entry %q", p)
		}
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("PERCENTILES entry %g outside [0, 100]", v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("PERCENTILES is empty")
	}
	return out, nil
}
