package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i474232898/weather-risk/internal/observability"
)

// Notifier delivers a text message to one recipient.
type Notifier interface {
	Notify(ctx context.Context, to, message string) error
}

// Event is a scored prediction that may warrant an alert.
type Event struct {
	City      string
	Label     string
	RiskScore float64
}

// Message renders the alert text.
func (e Event) Message() string {
	return fmt.Sprintf("Weather risk alert for %s: %s (risk score %.1f/100). Take precautions.", e.City, e.Label, e.RiskScore)
}

// Dispatcher sends alerts for events at or above a threshold. Delivery is best-effort:
// failures are logged and counted, never returned.
type Dispatcher struct {
	notifier   Notifier
	recipients []string
	threshold  float64
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func NewDispatcher(n Notifier, recipients []string, threshold float64, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifier:   n,
		recipients: recipients,
		threshold:  threshold,
		logger:     logger,
		metrics:    metrics,
	}
}

// Dispatch notifies every recipient when e crosses the threshold and reports how many
// deliveries succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) int {
	if d == nil || d.notifier == nil || e.RiskScore < d.threshold {
		return 0
	}

	msg := e.Message()
	sent := 0
	for _, to := range d.recipients {
		if err := d.notifier.Notify(ctx, to, msg); err != nil {
			d.logger.Warn("alert delivery failed", "city", e.City, "error", err)
			d.count("error")
			continue
		}
		sent++
		d.count("sent")
	}
	return sent
}

func (d *Dispatcher) count(outcome string) {
	if d.metrics != nil {
		d.metrics.AlertsSent.WithLabelValues(outcome).Inc()
	}
}

// LogNotifier writes alerts to the log. It is used when no SMS gateway is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, to, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("alert", "to", to, "message", message)
	return nil
}
