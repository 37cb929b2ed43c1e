package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-risk/internal/observability"
	"github.com/i474232898/weather-risk/internal/prediction"
)

const (
	defaultInterval = 15 * time.Minute
	jobTimeout      = 30 * time.Second
	maxConcurrent   = 4
)

// Predictor runs the prediction workflow for one location.
type Predictor interface {
	Predict(ctx context.Context, q prediction.Query, email string) (prediction.Result, error)
}

// Scheduler periodically scores the watched locations. Each run persists its predictions
// and raises alerts like an interactive request would.
type Scheduler struct {
	scheduler *gocron.Scheduler
	predictor Predictor
	locations []string
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a new Scheduler.
func New(locations []string, interval time.Duration, predictor Predictor, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		predictor: predictor,
		locations: locations,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Info("scheduler: no watch locations configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = defaultInterval
	}

	if _, err := s.scheduler.Every(interval).Do(s.RunOnce, context.Background()); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "locations", len(s.locations), "every", interval.String())
	return nil
}

// RunOnce scores every watched location with bounded concurrency. Individual failures are
// logged; the run reports how many locations succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Info("scheduler: running watch job", "locations", len(s.locations))

	results := make([]bool, len(s.locations))
	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	for i, loc := range s.locations {
		i, loc := i, loc
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()

			res, err := s.predictor.Predict(ctx, prediction.Query{Text: loc}, "")
			if err != nil {
				s.logger.Warn("scheduler: prediction failed", "location", loc, "error", err)
				return nil
			}
			results[i] = true
			s.logger.Debug("scheduler: location scored", "location", loc, "label", res.Label, "risk_score", res.RiskScore)
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, r := range results {
		if r {
			ok++
		}
	}
	if s.metrics != nil {
		s.metrics.WatchJobRuns.Inc()
	}
	s.logger.Info("scheduler: completed watch job", "succeeded", ok, "failed", len(s.locations)-ok)
	return ok
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
