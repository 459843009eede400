package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Placeholder values that ship in example configs and must be rejected as if
// the key were missing.
var placeholderKeys = map[string]bool{
	"YOUR_TOKEN_HERE":   true,
	"YOUR_API_KEY_HERE": true,
}

// City maps a city to its NOAA weather station, its EIA grid-reporting
// region, and the coordinates used by the dashboard's map view.
type City struct {
	Name          string  `yaml:"name"`
	NOAAStationID string  `yaml:"noaa_station_id"`
	EIARegionCode string  `yaml:"eia_region_code"`
	Lat           float64 `yaml:"lat"`
	Lon           float64 `yaml:"lon"`
}

// Config holds all service settings, populated from environment variables
// and the cities YAML file.
type Config struct {
	NOAAToken   string
	EIAAPIKey   string
	NOAABaseURL string
	EIABaseURL  string

	CitiesFile string
	Cities     []City

	DataDir         string
	FetchWindowDays int
	PageLimit       int

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	StaleAfter time.Duration

	HTTPAddr      string
	DashboardAddr string
	LogLevel      string
	LogFormat     string
	LogFile       string

	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment (and a .env file when
// present), applying defaults where unset. It does not require API keys; the
// pipeline entry point calls ValidateAPIKeys separately so the dashboard and
// genmock can run without credentials.
func Load() (*Config, error) {
	// A missing .env file is the normal case in deployment.
	_ = godotenv.Load()

	windowDays, err := parsePositiveInt("FETCH_WINDOW_DAYS", 90)
	if err != nil {
		return nil, err
	}
	pageLimit, err := parsePositiveInt("PAGE_LIMIT", 1000)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := parsePositiveInt("RETRY_MAX_ATTEMPTS", 4)
	if err != nil {
		return nil, err
	}
	baseDelay, err := parseDuration("RETRY_BASE_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	maxDelay, err := parseDuration("RETRY_MAX_DELAY", 8*time.Second)
	if err != nil {
		return nil, err
	}
	staleAfter, err := parseDuration("STALE_AFTER", 48*time.Hour)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NOAAToken:   os.Getenv("NOAA_TOKEN"),
		EIAAPIKey:   os.Getenv("EIA_API_KEY"),
		NOAABaseURL: envOrDefault("NOAA_BASE_URL", "https://www.ncei.noaa.gov/cdo-web/api/v2/data"),
		EIABaseURL:  envOrDefault("EIA_BASE_URL", "https://api.eia.gov/v2/electricity/rto/daily-region-data/data/"),

		CitiesFile: envOrDefault("CITIES_FILE", "config/cities.yaml"),

		DataDir:         envOrDefault("DATA_DIR", "data"),
		FetchWindowDays: windowDays,
		PageLimit:       pageLimit,

		RetryMaxAttempts: maxAttempts,
		RetryBaseDelay:   baseDelay,
		RetryMaxDelay:    maxDelay,

		StaleAfter: staleAfter,

		HTTPAddr:      envOrDefault("HTTP_ADDR", ":8080"),
		DashboardAddr: envOrDefault("DASHBOARD_ADDR", ":8090"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		LogFormat:     envOrDefault("LOG_FORMAT", "json"),
		LogFile:       envOrDefault("LOG_FILE", "logs/pipeline.log"),

		ShutdownTimeout: shutdownTimeout,
	}

	cities, err := loadCities(cfg.CitiesFile)
	if err != nil {
		return nil, err
	}
	cfg.Cities = cities

	return cfg, nil
}

// ValidateAPIKeys verifies the credentials both fetch clients need. Missing
// or placeholder keys are a startup failure for the pipeline binary.
func (c *Config) ValidateAPIKeys() error {
	if c.NOAAToken == "" || placeholderKeys[c.NOAAToken] {
		return errors.New("NOAA_TOKEN is required")
	}
	if c.EIAAPIKey == "" || placeholderKeys[c.EIAAPIKey] {
		return errors.New("EIA_API_KEY is required")
	}
	return nil
}

// CityByName returns the configured city with the given name.
func (c *Config) CityByName(name string) (City, bool) {
	for _, city := range c.Cities {
		if city.Name == name {
			return city, true
		}
	}
	return City{}, false
}

type citiesFile struct {
	Cities []City `yaml:"cities"`
}

func loadCities(path string) ([]City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities file %s: %w", path, err)
	}

	var f citiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cities file %s: %w", path, err)
	}
	if len(f.Cities) == 0 {
		return nil, fmt.Errorf("cities file %s lists no cities", path)
	}

	seen := make(map[string]bool, len(f.Cities))
	for i, city := range f.Cities {
		if city.Name == "" {
			return nil, fmt.Errorf("cities file %s: entry %d has no name", path, i)
		}
		if city.NOAAStationID == "" {
			return nil, fmt.Errorf("cities file %s: %s has no noaa_station_id", path, city.Name)
		}
		if city.EIARegionCode == "" {
			return nil, fmt.Errorf("cities file %s: %s has no eia_region_code", path, city.Name)
		}
		if seen[city.Name] {
			return nil, fmt.Errorf("cities file %s: duplicate city %s", path, city.Name)
		}
		seen[city.Name] = true
	}

	return f.Cities, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}
