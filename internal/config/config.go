package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Station used when a run is triggered without an id, and the static
	// labels stamped on every reading.
	DefaultStationID string
	StationName      string
	DeviceType       string

	// SMHI open data configuration.
	SMHIBaseURL string
	SMHIPeriod  string
	SMHITimeout time.Duration

	// GraphQL backend hosting the device directory and telemetry store.
	BackendEndpoint   string
	BackendAPIKey     string
	BackendTimeout    time.Duration
	BackendMaxRetries int

	// Optional Kafka fan-out of committed records.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	smhiTimeout, err := parsePositiveDuration("SMHI_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parsePositiveDuration("BACKEND_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	maxRetries, err := parseMaxRetries()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DefaultStationID: sharedcfg.EnvOrDefault("DEFAULT_STATION_ID", "99280"),
		StationName:      sharedcfg.EnvOrDefault("STATION_NAME", "Svenska Högarna"),
		DeviceType:       sharedcfg.EnvOrDefault("DEVICE_TYPE", "SMHI_Station"),

		SMHIBaseURL: sharedcfg.EnvOrDefault("SMHI_BASE_URL", "https://opendata-download-metobs.smhi.se"),
		SMHIPeriod:  sharedcfg.EnvOrDefault("SMHI_PERIOD", "latest-hour"),
		SMHITimeout: smhiTimeout,

		BackendEndpoint:   os.Getenv("API_ENDPOINT"),
		BackendAPIKey:     os.Getenv("API_KEY"),
		BackendTimeout:    backendTimeout,
		BackendMaxRetries: maxRetries,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "station-telemetry"),
	}

	if cfg.BackendEndpoint == "" {
		return nil, errors.New("API_ENDPOINT is required")
	}
	if cfg.BackendAPIKey == "" {
		return nil, errors.New("API_KEY is required")
	}
	if cfg.DefaultStationID == "" {
		return nil, errors.New("DEFAULT_STATION_ID is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseMaxRetries() (int, error) {
	s := os.Getenv("BACKEND_MAX_RETRIES")
	if s == "" {
		return 2, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 10 {
		return 0, fmt.Errorf("invalid BACKEND_MAX_RETRIES %q: must be 0-10", s)
	}
	return n, nil
}
