package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-risk/internal/weather"
)

// ErrClassifierUnavailable is returned when no classification could be obtained.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// errRejected marks a 4xx (other than 429) answer. It does not trip the breaker.
var errRejected = errors.New("request rejected")

// Classification is the classifier's verdict for one reading.
type Classification struct {
	Label            string             `json:"label"`
	ClassConfidences map[string]float64 `json:"class_confidences"`
}

// TopConfidence returns the largest class probability.
func (c Classification) TopConfidence() float64 {
	top := 0.0
	for _, p := range c.ClassConfidences {
		if p > top {
			top = p
		}
	}
	return top
}

// Classifier predicts a hazard label from a weather reading. The model itself is opaque.
type Classifier interface {
	Predict(ctx context.Context, features weather.Reading) (Classification, error)
}

// HTTPClassifier calls an external model service:
// POST {url} with the feature vector, answering {"label": ..., "class_confidences": {...}}.
type HTTPClassifier struct {
	url     string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "classifier",
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     30 * time.Second,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errRejected)
			},
		}),
	}
}

type featureVector struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Rainfall    float64 `json:"rainfall"`
	WindSpeed   float64 `json:"wind_speed"`
	Pressure    float64 `json:"pressure"`
}

func (c *HTTPClassifier) Predict(ctx context.Context, r weather.Reading) (Classification, error) {
	body, err := json.Marshal(featureVector{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Rainfall:    r.Rainfall,
		WindSpeed:   r.WindSpeed,
		Pressure:    r.Pressure,
	})
	if err != nil {
		return Classification{}, err
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, fmt.Errorf("%w: status %d: %s", errRejected, resp.StatusCode, msg)
			}
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		}

		var out Classification
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if out.Label == "" || len(out.ClassConfidences) == 0 {
			return nil, errors.New("empty classification")
		}
		return out, nil
	})
	if err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return result.(Classification), nil
}

// RuleClassifier applies the labelling rules the model was trained on. It is used when no
// model service is configured and always answers with full confidence.
type RuleClassifier struct{}

func (RuleClassifier) Predict(_ context.Context, r weather.Reading) (Classification, error) {
	var label string
	switch {
	case r.Rainfall > 70 && r.Humidity > 75:
		label = LabelFloodRisk
	case r.WindSpeed > 30:
		label = LabelCycloneRisk
	case r.Rainfall < 10 && r.Humidity < 50 && r.Temperature > 35:
		label = LabelDroughtRisk
	default:
		label = LabelLowRisk
	}

	confidences := map[string]float64{
		LabelFloodRisk:   0,
		LabelCycloneRisk: 0,
		LabelDroughtRisk: 0,
		LabelLowRisk:     0,
	}
	confidences[label] = 1
	return Classification{Label: label, ClassConfidences: confidences}, nil
}
