package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-risk/internal/observability"
)

// ReconcilerConfig wires a Reconciler. Primary wins every hour-key collision.
// Either provider may be nil, in which case it contributes nothing.
type ReconcilerConfig struct {
	Primary   HourlyProvider
	Secondary HourlyProvider

	// Timeout bounds each provider call. A timeout counts as a provider failure.
	Timeout time.Duration

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Reconciler merges two hourly sources into a single day timeline.
// It holds no per-request state and is safe for concurrent use.
type Reconciler struct {
	primary   HourlyProvider
	secondary HourlyProvider
	timeout   time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		timeout:   cfg.Timeout,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// Reconcile builds the timeline for date (YYYY-MM-DD, empty means today in UTC) at the
// given point. Provider failures are absorbed; ErrTimelineUnavailable is returned only when
// no hour could be assembled from either source.
func (r *Reconciler) Reconcile(ctx context.Context, at Coordinates, date string) (DailyTimeline, error) {
	now := r.clock.Now().UTC()

	if !at.Valid() {
		r.observe("invalid", 0)
		return DailyTimeline{}, fmt.Errorf("%w: coordinates (%v, %v) out of range", ErrInvalidInput, at.Lat, at.Lon)
	}
	day, err := ParseDate(date, now)
	if err != nil {
		r.observe("invalid", 0)
		return DailyTimeline{}, err
	}

	var (
		wg                       sync.WaitGroup
		primary, secondary       []HourlyReading
		primaryErr, secondaryErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		primary, primaryErr = r.fetch(ctx, r.primary, at, day)
	}()
	go func() {
		defer wg.Done()
		secondary, secondaryErr = r.fetch(ctx, r.secondary, at, day)
	}()
	wg.Wait()

	for _, err := range []error{primaryErr, secondaryErr} {
		if err != nil {
			r.logger.Warn("provider degraded to zero hours",
				"date", day.Format(DateLayout),
				"lat", at.Lat,
				"lon", at.Lon,
				"error", err,
			)
		}
	}

	// Merge order, not arrival order, decides precedence.
	hours := make(hourMap, 24)
	fromPrimary := hours.addPrimary(day, now, primary)
	fromSecondary := hours.addSecondary(day, secondary)

	r.logger.Debug("timeline reconciled",
		"date", day.Format(DateLayout),
		"primary_hours", fromPrimary,
		"secondary_hours", fromSecondary,
	)

	if len(hours) == 0 {
		r.observe("unavailable", 0)
		return DailyTimeline{}, fmt.Errorf("%w for %s", ErrTimelineUnavailable, day.Format(DateLayout))
	}

	tl := hours.timeline(day)
	if tl.Complete {
		r.observe("complete", tl.DataPoints)
	} else {
		r.observe("partial", tl.DataPoints)
	}
	return tl, nil
}

func (r *Reconciler) fetch(ctx context.Context, p HourlyProvider, at Coordinates, day time.Time) ([]HourlyReading, error) {
	if p == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	readings, err := p.FetchHourly(ctx, at, day)
	if r.metrics != nil {
		r.metrics.ProviderDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		r.countProvider(p.Name(), "error")
		var perr *ProviderError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	r.countProvider(p.Name(), "success")
	return readings, nil
}

func (r *Reconciler) countProvider(name, outcome string) {
	if r.metrics != nil {
		r.metrics.ProviderRequests.WithLabelValues(name, outcome).Inc()
	}
}

func (r *Reconciler) observe(outcome string, hours int) {
	if r.metrics == nil {
		return
	}
	r.metrics.Reconciles.WithLabelValues(outcome).Inc()
	if outcome != "invalid" {
		r.metrics.TimelineHours.Observe(float64(hours))
	}
}
