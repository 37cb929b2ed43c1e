package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-risk/internal/alert"
	httpapi "github.com/i474232898/weather-risk/internal/api/http"
	"github.com/i474232898/weather-risk/internal/auth"
	"github.com/i474232898/weather-risk/internal/config"
	"github.com/i474232898/weather-risk/internal/geocode"
	"github.com/i474232898/weather-risk/internal/logging"
	"github.com/i474232898/weather-risk/internal/observability"
	"github.com/i474232898/weather-risk/internal/prediction"
	"github.com/i474232898/weather-risk/internal/risk"
	"github.com/i474232898/weather-risk/internal/scheduler"
	"github.com/i474232898/weather-risk/internal/store"
	"github.com/i474232898/weather-risk/internal/weather"
	"github.com/i474232898/weather-risk/internal/weather/providers"
)

const appName = "weather-risk"

type dataStore interface {
	prediction.PredictionStore
	auth.UserStore
	Close() error
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.AppEnv, cfg.LogLevel, appName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("weather-risk stopped", "error", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until a termination signal. Deferred cleanup always
// runs before it returns.
func run(cfg *config.AppConfig, logger *slog.Logger) error {
	var err error

	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.ProviderTimeout,
	}
	backoff := providers.DefaultBackoff
	backoff.MaxRetries = cfg.ProviderMaxRetries

	// Open-Meteo is primary; the secondary only fills the hours it lacks.
	openWeather := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, backoff)
	var secondary weather.HourlyProvider = openWeather
	if cfg.SecondaryProvider == "weatherapi" {
		secondary = providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, backoff)
	}

	reconciler := weather.NewReconciler(weather.ReconcilerConfig{
		Primary:   providers.NewOpenMeteoProvider(httpClient, backoff),
		Secondary: secondary,
		Timeout:   cfg.ProviderTimeout,
		Logger:    logger,
		Metrics:   metrics,
	})

	var geocoder weather.Geocoder
	switch cfg.Geocoder {
	case "google":
		geocoder = geocode.NewGoogle(cfg.GoogleGeocodingAPIKey, cfg.GeocodeCountry)
	default:
		geocoder = geocode.NewLocationIQ(cfg.LocationIQAPIKey, cfg.GeocodeCountry, cfg.ProviderTimeout, logger)
	}
	geocoder = geocode.NewCached(geocoder, cfg.GeocodeCacheSize, metrics)

	var classifier risk.Classifier = risk.RuleClassifier{}
	if cfg.ClassifierURL != "" {
		classifier = risk.NewHTTPClassifier(cfg.ClassifierURL, cfg.ProviderTimeout)
	} else {
		logger.Info("no CLASSIFIER_URL set; using rule classifier")
	}

	var st dataStore
	if cfg.DatabasePath != "" {
		st, err = store.OpenSQLite(cfg.DatabasePath, cfg.StoreMaxHistory, nil, logger)
		if err != nil {
			return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
		}
	} else {
		st = store.NewMemoryStore(cfg.StoreMaxHistory, nil)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}()

	var notifier alert.Notifier = alert.LogNotifier{Logger: logger}
	if cfg.TwilioConfigured() {
		notifier = alert.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.ProviderTimeout)
	}

	// Core service orchestrating geocoding, providers, classifier and store.
	service := prediction.NewService(prediction.Config{
		Geocoder:   geocoder,
		Current:    openWeather,
		Timelines:  reconciler,
		Classifier: classifier,
		Store:      st,
		Alerts:     alert.NewDispatcher(notifier, cfg.AlertRecipients, cfg.AlertThreshold, logger, metrics),
		Logger:     logger,
		Metrics:    metrics,
	})

	// Scheduler that periodically scores the watched locations.
	sched := scheduler.New(cfg.WatchLocations, cfg.FetchInterval, service, logger, metrics)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	httpapi.RegisterOperational(app, appName, promhttp.Handler())
	httpapi.RegisterRoutes(app, service, auth.NewService(st, logger))

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	return nil
}
