package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-risk/internal/auth"
	"github.com/i474232898/weather-risk/internal/observability"
	"github.com/i474232898/weather-risk/internal/prediction"
	"github.com/i474232898/weather-risk/internal/risk"
	"github.com/i474232898/weather-risk/internal/store"
	"github.com/i474232898/weather-risk/internal/weather"
)

// --- fakes ---

type fakeGeocoder struct{}

func (fakeGeocoder) Resolve(_ context.Context, q string) (weather.Place, error) {
	if q == "Atlantis" {
		return weather.Place{}, weather.ErrPlaceNotFound
	}
	return weather.Place{City: q, District: "Test District", State: "Test State", Lat: 19.07, Lon: 72.87}, nil
}

func (fakeGeocoder) Reverse(_ context.Context, at weather.Coordinates) (weather.Place, error) {
	return weather.Place{City: "Mumbai", State: "Maharashtra", Lat: at.Lat, Lon: at.Lon}, nil
}

type fakeCurrent struct{ err error }

func (fakeCurrent) Name() string { return "fake" }

func (f fakeCurrent) Current(context.Context, weather.Coordinates) (weather.Reading, error) {
	return weather.Reading{Temperature: 25, Humidity: 50, Pressure: 1013}, f.err
}

type fakeTimelines struct{ err error }

func (f fakeTimelines) Reconcile(_ context.Context, _ weather.Coordinates, date string) (weather.DailyTimeline, error) {
	if f.err != nil {
		return weather.DailyTimeline{}, f.err
	}
	if date == "" {
		date = "2025-06-15"
	}
	return weather.DailyTimeline{
		Date:       date,
		DataPoints: 1,
		Hourly: []weather.HourlyObservation{
			{HourKey: "13:00", Type: weather.Future, Source: weather.SourceSecondary, Reading: weather.Reading{Temperature: 31}},
		},
	}, nil
}

type fixedClassifier struct{}

func (fixedClassifier) Predict(context.Context, weather.Reading) (risk.Classification, error) {
	return risk.Classification{Label: risk.LabelLowRisk, ClassConfidences: map[string]float64{risk.LabelLowRisk: 0.9}}, nil
}

type testDeps struct {
	currentErr  error
	timelineErr error
}

func newTestApp(t *testing.T, deps testDeps) *fiber.App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemoryStore(0, nil)

	svc := prediction.NewService(prediction.Config{
		Geocoder:   fakeGeocoder{},
		Current:    fakeCurrent{err: deps.currentErr},
		Timelines:  fakeTimelines{err: deps.timelineErr},
		Classifier: fixedClassifier{},
		Store:      mem,
		Logger:     logger,
		Metrics:    observability.NewMetricsForTesting(),
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterOperational(app, "weather-risk", promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	RegisterRoutes(app, svc, auth.NewService(mem, logger))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

// --- operational ---

func TestRootAndHealth(t *testing.T) {
	app := newTestApp(t, testDeps{})

	code, body := do(t, app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Backend running", body["message"])

	code, body = do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = do(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
}

// --- /predict ---

func TestPredict_ByCity(t *testing.T) {
	app := newTestApp(t, testDeps{})

	code, body := do(t, app, http.MethodPost, "/predict", `{"city":"Pune","email":"a@example.com"}`)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "Pune", body["city"])
	assert.Equal(t, "Test District", body["district"])
	assert.Equal(t, "Low Risk", body["prediction"])
	assert.Equal(t, 23.2, body["risk_score"])
	for _, k := range []string{"temperature", "humidity", "rainfall", "wind_speed", "pressure"} {
		assert.Contains(t, body, k)
	}
}

func TestPredict_ByCoordinates(t *testing.T) {
	app := newTestApp(t, testDeps{})

	code, body := do(t, app, http.MethodPost, "/predict", `{"lat":19.07,"lon":72.87}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Mumbai", body["city"])
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name string
		deps testDeps
		body string
		code int
	}{
		{"empty body", testDeps{}, ``, http.StatusBadRequest},
		{"malformed json", testDeps{}, `{"city":`, http.StatusBadRequest},
		{"no location", testDeps{}, `{"email":"a@example.com"}`, http.StatusBadRequest},
		{"only latitude", testDeps{}, `{"lat":19.0}`, http.StatusBadRequest},
		{"city with only latitude", testDeps{}, `{"city":"Pune","lat":18.5}`, http.StatusBadRequest},
		{"city with only longitude", testDeps{}, `{"city":"Pune","lon":73.8}`, http.StatusBadRequest},
		{"latitude out of range", testDeps{}, `{"lat":95,"lon":72}`, http.StatusBadRequest},
		{"unknown place", testDeps{}, `{"city":"Atlantis"}`, http.StatusBadRequest},
		{"weather down", testDeps{currentErr: errors.New("down")}, `{"city":"Pune"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, newTestApp(t, tt.deps), http.MethodPost, "/predict", tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, true, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

// --- /weather-trends ---

func TestWeatherTrends(t *testing.T) {
	app := newTestApp(t, testDeps{})

	code, body := do(t, app, http.MethodPost, "/weather-trends", `{"city":"Pune","date":"2025-06-16"}`)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "Pune", body["city"])
	assert.Equal(t, "2025-06-16", body["date"])
	hourly, ok := body["hourly"].([]any)
	require.True(t, ok)
	require.Len(t, hourly, 1)
	first := hourly[0].(map[string]any)
	assert.Equal(t, "13:00", first["time"])
	assert.Equal(t, "future", first["type"])
}

func TestWeatherTrends_Errors(t *testing.T) {
	code, _ := do(t, newTestApp(t, testDeps{}), http.MethodPost, "/weather-trends", `{"city":"Pune","date":"15/06/2025"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, newTestApp(t, testDeps{}), http.MethodPost, "/weather-trends", `{"city":"Pune","lon":73.8}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, newTestApp(t, testDeps{timelineErr: weather.ErrTimelineUnavailable}), http.MethodPost, "/weather-trends", `{"city":"Pune"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Weather trends fetch failed", body["message"])
}

// --- /recent-predictions ---

func TestRecentPredictions(t *testing.T) {
	app := newTestApp(t, testDeps{})
	for _, city := range []string{"Pune", "Nagpur", "Nashik"} {
		code, _ := do(t, app, http.MethodPost, "/predict", `{"city":"`+city+`","email":"a@example.com"}`)
		require.Equal(t, http.StatusOK, code)
	}
	code, _ := do(t, app, http.MethodPost, "/predict", `{"city":"Goa"}`)
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/recent-predictions?limit=2&email=a@example.com", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, "Nashik", items[0]["city"])
	assert.Equal(t, "Nagpur", items[1]["city"])
	assert.Contains(t, items[0], "timestamp")

	code, _ = do(t, app, http.MethodGet, "/recent-predictions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

// --- auth ---

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t, testDeps{})

	code, body := do(t, app, http.MethodPost, "/api/auth/register", `{"email":"asha@example.com","password":"monsoon42","fullName":"Asha"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "User registered successfully", body["message"])

	code, body = do(t, app, http.MethodPost, "/api/auth/register", `{"email":"asha@example.com","password":"another1"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "User already exists", body["message"])

	code, body = do(t, app, http.MethodPost, "/api/auth/login", `{"email":"asha@example.com","password":"monsoon42"}`)
	require.Equal(t, http.StatusOK, code)
	user := body["user"].(map[string]any)
	assert.Equal(t, "asha@example.com", user["email"])
	assert.Equal(t, "Asha", user["fullName"])

	code, _ = do(t, app, http.MethodPost, "/api/auth/login", `{"email":"asha@example.com","password":"wrong-one"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegister_Validation(t *testing.T) {
	app := newTestApp(t, testDeps{})

	code, _ := do(t, app, http.MethodPost, "/api/auth/register", `{"email":"asha@example.com","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodPost, "/api/auth/register", `{"email":"not-an-email","password":"monsoon42"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodPost, "/api/auth/login", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
