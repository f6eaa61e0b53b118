package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// NASA FIRMS feed.
	FIRMSAPIKey       string
	FIRMSBaseURL      string
	FIRMSSource       string
	FIRMSTimeout      time.Duration
	FIRMSLookbackDays int
	FIRMSBBox         domain.BoundingBox

	DatabaseURL     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	UpdateInterval  time.Duration
	AdminToken      string

	// Downstream change publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Defaults applied when the corresponding variable is unset.
const (
	DefaultFIRMSBaseURL = "https://firms.modaps.eosdis.nasa.gov/api/area/csv"
	DefaultFIRMSSource  = "MODIS_NRT"
	DefaultLookbackDays = 7
)

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	firmsTimeout, err := parsePositiveDuration("FIRMS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	updateInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("UPDATE_INTERVAL", "3h"))
	if err != nil || updateInterval < 0 {
		return nil, errors.New("invalid UPDATE_INTERVAL")
	}

	lookback, err := strconv.Atoi(sharedcfg.EnvOrDefault("FIRMS_LOOKBACK_DAYS", strconv.Itoa(DefaultLookbackDays)))
	if err != nil || lookback < 1 {
		return nil, errors.New("invalid FIRMS_LOOKBACK_DAYS")
	}

	bbox := domain.BoliviaBBox
	if s := os.Getenv("FIRMS_BBOX"); s != "" {
		bbox, err = domain.ParseBoundingBox(s)
		if err != nil {
			return nil, fmt.Errorf("invalid FIRMS_BBOX: %w", err)
		}
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		FIRMSAPIKey:       os.Getenv("NASA_FIRMS_API_KEY"),
		FIRMSBaseURL:      sharedcfg.EnvOrDefault("FIRMS_BASE_URL", DefaultFIRMSBaseURL),
		FIRMSSource:       sharedcfg.EnvOrDefault("FIRMS_SOURCE", DefaultFIRMSSource),
		FIRMSTimeout:      firmsTimeout,
		FIRMSLookbackDays: lookback,
		FIRMSBBox:         bbox,

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		UpdateInterval:  updateInterval,
		AdminToken:      os.Getenv("ADMIN_TOKEN"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "wildfire-records"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseCacheSize("MAPBOX_CACHE_SIZE", 1000),
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether record changes should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
