package weather

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-risk/internal/observability"
)

// --- stub provider ---

type stubProvider struct {
	name     string
	readings []HourlyReading
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FetchHourly(ctx context.Context, _ Coordinates, _ time.Time) ([]HourlyReading, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.readings, s.err
}

var (
	testDay   = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	testNow   = time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	testPoint = Coordinates{Lat: 19.076, Lon: 72.8777}
)

// hours returns one reading per hour in [from, to] on day, with temperature set to temp.
func hours(day time.Time, from, to int, temp float64) []HourlyReading {
	var out []HourlyReading
	for h := from; h <= to; h++ {
		out = append(out, HourlyReading{
			Timestamp: day.Add(time.Duration(h) * time.Hour),
			Reading:   Reading{Temperature: temp, Humidity: 60, Pressure: 1008, WindSpeed: 3, Rainfall: 0.2},
		})
	}
	return out
}

func newTestReconciler(primary, secondary HourlyProvider) *Reconciler {
	return NewReconciler(ReconcilerConfig{
		Primary:   primary,
		Secondary: secondary,
		Timeout:   time.Second,
		Clock:     clockwork.NewFakeClockAt(testNow),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   observability.NewMetricsForTesting(),
	})
}

// --- tests ---

func TestReconcile_PrimaryFullDay(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 23, 30)}
	secondary := &stubProvider{name: "openweather"}

	tl, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	assert.Equal(t, "2025-06-15", tl.Date)
	assert.Equal(t, 24, tl.DataPoints)
	assert.True(t, tl.Complete)
	assert.Equal(t, "00:00", tl.Hourly[0].HourKey)
	assert.Equal(t, "23:00", tl.Hourly[23].HourKey)

	for _, obs := range tl.Hourly {
		assert.Equal(t, SourcePrimary, obs.Source)
	}
	// 12:00 is strictly before 12:30, 13:00 is not.
	assert.Equal(t, Past, tl.Hourly[12].Type)
	assert.Equal(t, Future, tl.Hourly[13].Type)
}

func TestReconcile_SecondaryFillsGapsOnly(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 11, 30)}
	secondary := &stubProvider{name: "openweather", readings: hours(testDay, 0, 23, 99)}

	tl, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	require.Len(t, tl.Hourly, 24)
	assert.True(t, tl.Complete)
	for i, obs := range tl.Hourly {
		if i < 12 {
			assert.Equal(t, SourcePrimary, obs.Source, obs.HourKey)
			assert.Equal(t, 30.0, obs.Temperature, obs.HourKey)
			continue
		}
		assert.Equal(t, SourceSecondary, obs.Source, obs.HourKey)
		assert.Equal(t, Future, obs.Type, obs.HourKey)
		assert.Equal(t, 99.0, obs.Temperature, obs.HourKey)
	}
}

func TestReconcile_SecondaryAlwaysFuture(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", err: errors.New("boom")}
	secondary := &stubProvider{name: "openweather", readings: hours(testDay, 0, 2, 20)}

	tl, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	require.Len(t, tl.Hourly, 3)
	for _, obs := range tl.Hourly {
		assert.Equal(t, Future, obs.Type, "secondary hours are forecast data")
	}
}

func TestReconcile_FiltersOtherDays(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay.AddDate(0, 0, -1), 20, 23, 10)}
	secondary := &stubProvider{name: "openweather", readings: append(
		hours(testDay, 22, 23, 15),
		hours(testDay.AddDate(0, 0, 1), 0, 5, 15)...,
	)}

	tl, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	require.Len(t, tl.Hourly, 2)
	assert.Equal(t, "22:00", tl.Hourly[0].HourKey)
	assert.Equal(t, "23:00", tl.Hourly[1].HourKey)
	assert.False(t, tl.Complete)
}

func TestReconcile_DuplicateHoursKeepFirst(t *testing.T) {
	readings := append(hours(testDay, 5, 5, 1), hours(testDay, 5, 5, 2)...)
	primary := &stubProvider{name: "open-meteo", readings: readings}

	tl, err := newTestReconciler(primary, nil).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	require.Len(t, tl.Hourly, 1)
	assert.Equal(t, 1.0, tl.Hourly[0].Temperature)
}

func TestReconcile_PrimaryDown_PartialSuccess(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", err: errors.New("connection refused")}
	secondary := &stubProvider{name: "openweather", readings: hours(testDay, 13, 17, 25)}

	tl, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	assert.Equal(t, 5, tl.DataPoints)
	assert.False(t, tl.Complete)
}

func TestReconcile_SecondaryDown_PartialSuccess(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 9, 25)}
	secondary := &stubProvider{name: "openweather", err: errors.New("401 unauthorized")}

	tl, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	assert.Equal(t, 10, tl.DataPoints)
}

func TestReconcile_BothDown_TimelineUnavailable(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", err: errors.New("timeout")}
	secondary := &stubProvider{name: "openweather", err: errors.New("500")}

	_, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimelineUnavailable)
}

func TestReconcile_BothEmpty_TimelineUnavailable(t *testing.T) {
	primary := &stubProvider{name: "open-meteo"}
	secondary := &stubProvider{name: "openweather", readings: hours(testDay.AddDate(0, 0, 3), 0, 23, 20)}

	_, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	assert.ErrorIs(t, err, ErrTimelineUnavailable)
}

func TestReconcile_InvalidCoordinates_NoNetwork(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 23, 20)}
	secondary := &stubProvider{name: "openweather"}

	_, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), Coordinates{Lat: 91, Lon: 0}, "2025-06-15")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, primary.calls.Load())
	assert.Zero(t, secondary.calls.Load())
}

func TestReconcile_InvalidDate_NoNetwork(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 23, 20)}

	_, err := newTestReconciler(primary, nil).Reconcile(context.Background(), testPoint, "15/06/2025")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, primary.calls.Load())
}

func TestReconcile_DefaultsToTodayUTC(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 3, 20)}

	tl, err := newTestReconciler(primary, nil).Reconcile(context.Background(), testPoint, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", tl.Date)
	assert.Equal(t, 4, tl.DataPoints)
}

func TestReconcile_ProviderTimeoutDegrades(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 23, 20), delay: time.Minute}
	secondary := &stubProvider{name: "openweather", readings: hours(testDay, 20, 23, 18)}

	r := newTestReconciler(primary, secondary)
	r.timeout = 50 * time.Millisecond

	tl, err := r.Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, 4, tl.DataPoints)
	for _, obs := range tl.Hourly {
		assert.Equal(t, SourceSecondary, obs.Source)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 15, 21)}
	secondary := &stubProvider{name: "openweather", readings: hours(testDay, 10, 23, 19)}
	r := newTestReconciler(primary, secondary)

	first, err := r.Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestReconcile_OutputKeysUniqueAndSorted(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: append(hours(testDay, 3, 9, 1), hours(testDay, 0, 23, 2)...)}
	secondary := &stubProvider{name: "openweather", readings: hours(testDay, 0, 23, 3)}

	tl, err := newTestReconciler(primary, secondary).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	assert.LessOrEqual(t, tl.DataPoints, 24)
	assert.Equal(t, tl.DataPoints == 24, tl.Complete)
	seen := map[string]bool{}
	for i, obs := range tl.Hourly {
		assert.False(t, seen[obs.HourKey], "duplicate key %s", obs.HourKey)
		seen[obs.HourKey] = true
		if i > 0 {
			assert.Less(t, tl.Hourly[i-1].HourKey, obs.HourKey)
		}
	}
}

func TestTimeline_JSONShape(t *testing.T) {
	primary := &stubProvider{name: "open-meteo", readings: hours(testDay, 0, 0, 21.5)}

	tl, err := newTestReconciler(primary, nil).Reconcile(context.Background(), testPoint, "2025-06-15")
	require.NoError(t, err)

	b, err := json.Marshal(tl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"date": "2025-06-15",
		"hourly": [{"time":"00:00","type":"past","source":"primary","temperature":21.5,
			"humidity":60,"pressure":1008,"wind_speed":3,"rainfall":0.2}],
		"data_points": 1,
		"complete": false
	}`, string(b))
}

func TestProviderError_UnwrapsToProviderUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(&ProviderError{Provider: "openweather", Err: cause})

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "openweather")
}
