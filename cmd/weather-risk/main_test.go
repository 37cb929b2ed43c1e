package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-risk/internal/config"
)

func TestRun_ReturnsStartupErrors(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cfg := &config.AppConfig{
		Port:              "0",
		AppEnv:            "dev",
		SecondaryProvider: "openweather",
		ProviderTimeout:   time.Second,
		Geocoder:          "locationiq",
		GeocodeCountry:    "in",
		GeocodeCacheSize:  10,
		DatabasePath:      filepath.Join(blocker, "weather.db"),
		AlertThreshold:    70,
		FetchInterval:     time.Minute,
		ShutdownTimeout:   time.Second,
	}

	err := run(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open database")
}
