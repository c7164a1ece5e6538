package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Driver names accepted by ARCHIVE_DRIVER.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

const defaultStationBaseURL = "https://tepfsail50.execute-api.us-west-2.amazonaws.com/v1"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Station report API (hindcast flow).
	StationBaseURL string
	BuoyID         int
	ShoreID        int

	// NWS gridpoint endpoint (forecast flow). The NWS API rejects requests
	// without a contact-bearing User-Agent.
	NWSBaseURL   string
	NWSOffice    string
	NWSGridX     int
	NWSGridY     int
	NWSUserAgent string

	// Workflow cadence.
	FetchInterval time.Duration
	Lookback      time.Duration
	HTTPTimeout   time.Duration

	// Archive storage.
	ArchiveDriver string
	ArchiveDir    string

	// Kafka publishing of fused rows.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Model output upload.
	UploadEnabled   bool
	GCSBucket       string
	OutputDirs      []string
	UploadRetention time.Duration

	// Ops surface.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, after a best-effort load of
// a local .env file. Unset keys fall back to defaults. All malformed or
// inconsistent values are collected and reported in one combined error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		StationBaseURL: envOrDefault("STATION_BASE_URL", defaultStationBaseURL),
		BuoyID:         intEnv(&errs, "BUOY_ID", 4),
		ShoreID:        intEnv(&errs, "SHORE_ID", 1),

		NWSBaseURL:   envOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSOffice:    envOrDefault("NWS_OFFICE", "TOP"),
		NWSGridX:     intEnv(&errs, "NWS_GRID_X", 32),
		NWSGridY:     intEnv(&errs, "NWS_GRID_Y", 86),
		NWSUserAgent: envOrDefault("NWS_USER_AGENT", "lake-telemetry-etl (github.com/couchcryptid/lake-telemetry-etl)"),

		FetchInterval: durationEnv(&errs, "FETCH_INTERVAL", 6*time.Hour),
		Lookback:      durationEnv(&errs, "LOOKBACK", 168*time.Hour),
		HTTPTimeout:   durationEnv(&errs, "HTTP_TIMEOUT", 30*time.Second),

		ArchiveDriver: envOrDefault("ARCHIVE_DRIVER", DriverCSV),
		ArchiveDir:    envOrDefault("ARCHIVE_DIR", "data/archive"),

		KafkaEnabled: boolEnv(&errs, "KAFKA_ENABLED", false),
		KafkaBrokers: splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "fused-lake-telemetry"),

		GCSBucket:       os.Getenv("GCS_BUCKET"),
		OutputDirs:      splitList(envOrDefault("OUTPUT_DIRS", "outputs/flow,outputs/temperature")),
		UploadRetention: durationEnv(&errs, "UPLOAD_RETENTION", 192*time.Hour),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: durationEnv(&errs, "SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	// Setting a bucket implies uploading; UPLOAD_ENABLED overrides either way.
	cfg.UploadEnabled = boolEnv(&errs, "UPLOAD_ENABLED", cfg.GCSBucket != "")

	if cfg.BuoyID <= 0 {
		errs = append(errs, errors.New("BUOY_ID must be positive"))
	}
	if cfg.ShoreID <= 0 {
		errs = append(errs, errors.New("SHORE_ID must be positive"))
	}
	if cfg.ArchiveDriver != DriverCSV && cfg.ArchiveDriver != DriverSQLite {
		errs = append(errs, fmt.Errorf("ARCHIVE_DRIVER must be %q or %q, got %q", DriverCSV, DriverSQLite, cfg.ArchiveDriver))
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty"))
		}
		if cfg.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty"))
		}
	}
	if cfg.UploadEnabled {
		if cfg.GCSBucket == "" {
			errs = append(errs, errors.New("UPLOAD_ENABLED is true but GCS_BUCKET is not set"))
		}
		if len(cfg.OutputDirs) == 0 {
			errs = append(errs, errors.New("UPLOAD_ENABLED is true but OUTPUT_DIRS is empty"))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(errs *[]error, key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, s))
		return def
	}
	return n
}

func boolEnv(errs *[]error, key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, s))
		return def
	}
	return b
}

func durationEnv(errs *[]error, key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: must be a positive duration", key, s))
		return def
	}
	return d
}

// splitList parses a comma-separated value, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
