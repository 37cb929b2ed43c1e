package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-risk/internal/common"
)

type AppConfig struct {
	Port           string
	AppEnv         string // dev | prod
	LogLevel       slog.Level
	AllowedOrigins string

	OpenWeatherAPIKey string
	WeatherAPIKey     string

	// SecondaryProvider fills the hours Open-Meteo lacks: openweather | weatherapi.
	SecondaryProvider  string
	ProviderTimeout    time.Duration
	ProviderMaxRetries int

	Geocoder              string // locationiq | google
	LocationIQAPIKey      string
	GoogleGeocodingAPIKey string
	GeocodeCountry        string
	GeocodeCacheSize      int

	// ClassifierURL points at the model service; empty selects the rule classifier.
	ClassifierURL string

	// DatabasePath selects the SQLite store; empty keeps everything in memory.
	DatabasePath    string
	StoreMaxHistory int // max number of predictions kept (0 = unlimited)

	AlertThreshold    float64
	AlertRecipients   []string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// WatchLocations are scored every FetchInterval by the scheduler.
	WatchLocations []string
	FetchInterval  time.Duration

	ShutdownTimeout time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return fromEnv()
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:                  getenvDefault("PORT", "8080"),
		AppEnv:                getenvDefault("APP_ENV", "dev"),
		AllowedOrigins:        getenvDefault("ALLOWED_ORIGINS", "*"),
		OpenWeatherAPIKey:     os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:         os.Getenv("WEATHERAPI_API_KEY"),
		SecondaryProvider:     strings.ToLower(getenvDefault("SECONDARY_PROVIDER", "openweather")),
		Geocoder:              strings.ToLower(getenvDefault("GEOCODER", "locationiq")),
		LocationIQAPIKey:      os.Getenv("LOCATIONIQ_API_KEY"),
		GoogleGeocodingAPIKey: os.Getenv("GOOGLE_GEOCODING_API_KEY"),
		GeocodeCountry:        getenvDefault("GEOCODE_COUNTRY", "in"),
		ClassifierURL:         os.Getenv("CLASSIFIER_URL"),
		DatabasePath:          os.Getenv("DATABASE_PATH"),
		AlertRecipients:       common.SplitList(os.Getenv("ALERT_RECIPIENTS")),
		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber:     os.Getenv("TWILIO_PHONE_NUMBER"),
		WatchLocations:        common.SplitList(os.Getenv("WATCH_LOCATIONS")),
	}

	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}
	switch cfg.SecondaryProvider {
	case "openweather", "weatherapi":
	default:
		return nil, fmt.Errorf("invalid SECONDARY_PROVIDER %q (allowed: openweather, weatherapi)", cfg.SecondaryProvider)
	}
	switch cfg.Geocoder {
	case "locationiq", "google":
	default:
		return nil, fmt.Errorf("invalid GEOCODER %q (allowed: locationiq, google)", cfg.Geocoder)
	}

	var err error
	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProviderMaxRetries, err = getenvInt("PROVIDER_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.GeocodeCacheSize, err = getenvInt("GEOCODE_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	// Roughly a day of predictions for a busy deployment.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 1000); err != nil {
		return nil, err
	}
	if cfg.AlertThreshold, err = getenvFloat("ALERT_THRESHOLD", 70); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if cfg.ProviderMaxRetries < 0 {
		return nil, fmt.Errorf("invalid PROVIDER_MAX_RETRIES %d: must be >= 0", cfg.ProviderMaxRetries)
	}
	if cfg.AlertThreshold < 0 || cfg.AlertThreshold > 100 {
		return nil, fmt.Errorf("invalid ALERT_THRESHOLD %v: must be within [0, 100]", cfg.AlertThreshold)
	}
	return cfg, nil
}

// TwilioConfigured reports whether SMS alerts can be delivered.
func (c *AppConfig) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
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
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
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
