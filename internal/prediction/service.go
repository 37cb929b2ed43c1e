package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i474232898/weather-risk/internal/alert"
	"github.com/i474232898/weather-risk/internal/common"
	"github.com/i474232898/weather-risk/internal/observability"
	"github.com/i474232898/weather-risk/internal/risk"
	"github.com/i474232898/weather-risk/internal/store"
	"github.com/i474232898/weather-risk/internal/weather"
)

const (
	DefaultRecentLimit = 5
	MaxRecentLimit     = 100
)

// ErrWeatherUnavailable is returned when the current conditions could not be fetched.
var ErrWeatherUnavailable = errors.New("weather fetch failed")

// PredictionStore persists scored predictions.
type PredictionStore interface {
	SavePrediction(ctx context.Context, p store.Prediction) (store.Prediction, error)
	RecentPredictions(ctx context.Context, limit int, email string) ([]store.Prediction, error)
}

// TimelineSource builds the reconciled hourly view of a day.
type TimelineSource interface {
	Reconcile(ctx context.Context, at weather.Coordinates, date string) (weather.DailyTimeline, error)
}

// Config wires a Service.
type Config struct {
	Geocoder   weather.Geocoder
	Current    weather.CurrentProvider
	Timelines  TimelineSource
	Classifier risk.Classifier
	Scorer     *risk.Scorer
	Store      PredictionStore
	Alerts     *alert.Dispatcher // optional

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Service orchestrates geocoding, weather providers, the classifier and persistence.
type Service struct {
	geocoder   weather.Geocoder
	current    weather.CurrentProvider
	timelines  TimelineSource
	classifier risk.Classifier
	scorer     *risk.Scorer
	store      PredictionStore
	alerts     *alert.Dispatcher
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewService creates a new Service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scorer == nil {
		cfg.Scorer = risk.NewScorer(risk.DefaultPolicy())
	}
	return &Service{
		geocoder:   cfg.Geocoder,
		current:    cfg.Current,
		timelines:  cfg.Timelines,
		classifier: cfg.Classifier,
		scorer:     cfg.Scorer,
		store:      cfg.Store,
		alerts:     cfg.Alerts,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Query names a location either by free text or by coordinates. Coordinates win when both
// are given.
type Query struct {
	Text string
	At   *weather.Coordinates
}

// Result is the outcome of one prediction.
type Result struct {
	City     string `json:"city"`
	District string `json:"district"`
	State    string `json:"state"`
	weather.Reading
	Label     string  `json:"prediction"`
	RiskScore float64 `json:"risk_score"`
}

// Trends is the reconciled day for a resolved place.
type Trends struct {
	City     string `json:"city"`
	District string `json:"district"`
	State    string `json:"state"`
	weather.DailyTimeline
}

// Predict resolves the location, classifies its current weather, scores the risk,
// persists the prediction and raises an alert when the score is high.
func (s *Service) Predict(ctx context.Context, q Query, email string) (Result, error) {
	place, err := s.resolve(ctx, q)
	if err != nil {
		return Result{}, err
	}

	reading, err := s.current.Current(ctx, place.Coordinates())
	if err != nil {
		s.logger.Warn("current weather fetch failed", "city", place.City, "provider", s.current.Name(), "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrWeatherUnavailable, err)
	}

	label, score := s.classify(ctx, place.City, reading)

	res := Result{
		City:      place.City,
		District:  place.District,
		State:     place.State,
		Reading:   reading,
		Label:     label,
		RiskScore: score,
	}

	if _, err := s.store.SavePrediction(ctx, store.Prediction{
		Email:     common.NormalizeEmail(email),
		City:      res.City,
		Label:     res.Label,
		RiskScore: res.RiskScore,
	}); err != nil {
		// The prediction is still returned; history is best-effort.
		s.logger.Error("save prediction failed", "city", res.City, "error", err)
	}

	s.alerts.Dispatch(ctx, alert.Event{City: res.City, Label: res.Label, RiskScore: res.RiskScore})

	if s.metrics != nil {
		s.metrics.Predictions.WithLabelValues(res.Label).Inc()
		s.metrics.RiskScore.Observe(res.RiskScore)
	}
	s.logger.Info("prediction served", "city", res.City, "label", res.Label, "risk_score", res.RiskScore)
	return res, nil
}

// classify never fails: a classifier error yields the Unknown label with the fallback score.
func (s *Service) classify(ctx context.Context, city string, r weather.Reading) (string, float64) {
	c, err := s.classifier.Predict(ctx, r)
	if err != nil {
		s.logger.Warn("classifier failed, using fallback score", "city", city, "error", err)
		if s.metrics != nil {
			s.metrics.FallbackScores.Inc()
		}
		return risk.LabelUnknown, risk.FallbackScore
	}

	b := s.scorer.Explain(c.Label, c.TopConfidence(), r)
	s.logger.Debug("risk scored",
		"label", c.Label,
		"base_risk", b.BaseRisk,
		"weather_risk", b.WeatherRisk,
		"multiplier", b.Multiplier,
		"risk_score", b.Value,
	)
	return c.Label, b.Value
}

// Trends returns the reconciled hourly timeline for the resolved place and date.
func (s *Service) Trends(ctx context.Context, q Query, date string) (Trends, error) {
	place, err := s.resolve(ctx, q)
	if err != nil {
		return Trends{}, err
	}

	tl, err := s.timelines.Reconcile(ctx, place.Coordinates(), date)
	if err != nil {
		return Trends{}, err
	}
	return Trends{
		City:          place.City,
		District:      place.District,
		State:         place.State,
		DailyTimeline: tl,
	}, nil
}

// Recent returns the latest predictions, newest first. limit is clamped to
// [1, MaxRecentLimit]; zero or negative means DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int, email string) ([]store.Prediction, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}
	return s.store.RecentPredictions(ctx, limit, common.NormalizeEmail(email))
}

func (s *Service) resolve(ctx context.Context, q Query) (weather.Place, error) {
	var (
		place weather.Place
		err   error
	)
	switch {
	case q.At != nil:
		if !q.At.Valid() {
			return weather.Place{}, fmt.Errorf("%w: coordinates (%v, %v) out of range", weather.ErrInvalidInput, q.At.Lat, q.At.Lon)
		}
		place, err = s.geocoder.Reverse(ctx, *q.At)
	case strings.TrimSpace(q.Text) != "":
		place, err = s.geocoder.Resolve(ctx, strings.TrimSpace(q.Text))
	default:
		return weather.Place{}, fmt.Errorf("%w: city or coordinates required", weather.ErrInvalidInput)
	}

	if errors.Is(err, weather.ErrPlaceNotFound) {
		return weather.Place{}, err
	}
	if err != nil {
		s.logger.Warn("geocoding failed", "query", q.Text, "error", err)
		return weather.Place{}, fmt.Errorf("%w: %v", weather.ErrPlaceNotFound, err)
	}
	if place.City == "" {
		return weather.Place{}, weather.ErrPlaceNotFound
	}
	return place, nil
}
