package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/mosmix-forecast/internal/common"
	"github.com/i474232898/mosmix-forecast/internal/weather/providers"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

type AppConfig struct {
	AppEnv   string `validate:"oneof=dev prod"`
	LogLevel slog.Level
	Port     string `validate:"required,numeric"`

	// Stations are MOSMIX station ids, e.g. 10865 or H522.
	Stations []string `validate:"min=1,dive,required,alphanum"`
	// LookAhead is added to the current time when evaluating a forecast.
	LookAhead time.Duration `validate:"gte=0s"`
	// AdditionalElements are tracked on top of the base element set.
	AdditionalElements []string `validate:"dive,required,alphanum"`

	// PollInterval controls how often each station is evaluated.
	PollInterval    time.Duration `validate:"gt=0s"`
	HTTPTimeout     time.Duration `validate:"gt=0s"`
	FeedURLTemplate string        `validate:"required,contains={station}"`
	FetchMaxRetries int           `validate:"gte=0,lte=10"`

	// In-memory snapshot retention.
	StoreMaxHistory int           `validate:"gte=0"`  // max number of snapshots per station (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0s"` // max age of snapshots (0 = unlimited)

	// MQTT publishing is disabled while MQTTBroker is empty.
	MQTTBroker      string
	MQTTPort        int    `validate:"gte=1,lte=65535"`
	MQTTClientID    string `validate:"required_with=MQTTBroker"`
	MQTTTopicPrefix string `validate:"required_with=MQTTBroker"`
}

var validate = validator.New()

// Load reads and validates configuration.
func Load(envFiles ...string) (*AppConfig, error) {
	cfg, err := Read(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads configuration from environment with sensible defaults without
// validating it. Files are loaded with godotenv first; a missing file is not an error.
func Read(envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Info("no env file loaded", "files", envFiles, "error", err)
	}
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", EnvDev)
	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.Stations = common.AppendUnique(nil, common.SplitList(os.Getenv("MOSMIX_STATIONS"))...)

	lookAheadStr := getenvDefault("LOOK_AHEAD_HOURS", "0")
	hours, err := strconv.ParseFloat(lookAheadStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LOOK_AHEAD_HOURS %q: %w", lookAheadStr, err)
	}
	cfg.LookAhead = time.Duration(hours * float64(time.Hour))

	// An explicitly empty ADDITIONAL_ELEMENTS tracks the base set only.
	additional, ok := os.LookupEnv("ADDITIONAL_ELEMENTS")
	if !ok {
		additional = "Neff,PPPP,FX1"
	}
	cfg.AdditionalElements = common.SplitList(additional)

	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	cfg.FeedURLTemplate = getenvDefault("FEED_URL_TEMPLATE", providers.DefaultURLTemplate)
	if cfg.FetchMaxRetries, err = getenvInt("FETCH_MAX_RETRIES", 0); err != nil {
		return nil, err
	}

	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 96); err != nil { // 24h at 15-minute intervals
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.MQTTBroker = strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if cfg.MQTTPort, err = getenvInt("MQTT_PORT", 1883); err != nil {
		return nil, err
	}
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "mosmix-forecast")
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", "mosmix")

	return cfg, nil
}

// Validate checks the configuration, e.g. after command line overrides.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// MQTTEnabled reports whether snapshots are published to a broker.
func (c *AppConfig) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
