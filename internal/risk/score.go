package risk

import (
	"math"

	"github.com/i474232898/weather-risk/internal/common"
	"github.com/i474232898/weather-risk/internal/weather"
)

// Classifier labels used by the trained model.
const (
	LabelLowRisk     = "Low Risk"
	LabelFloodRisk   = "Flood Risk"
	LabelCycloneRisk = "Cyclone Risk"
	LabelDroughtRisk = "Drought Risk"

	// LabelUnknown is reported when no classification could be obtained.
	LabelUnknown = "Unknown"
)

// FallbackScore is reported by callers that cannot obtain a classification.
const FallbackScore = 50.0

// Direction of a threshold comparison.
type Direction int

const (
	Above Direction = iota // value > threshold
	Below                  // value < threshold
)

// Tier adds Points when the value crosses Threshold in the given direction.
type Tier struct {
	Dir       Direction
	Threshold float64
	Points    float64
}

func (t Tier) matches(v float64) bool {
	if t.Dir == Above {
		return v > t.Threshold
	}
	return v < t.Threshold
}

// Tiers is an ordered step function: the first matching tier wins, no match scores 0.
type Tiers []Tier

func (ts Tiers) points(v float64) float64 {
	pts, _ := ts.lookup(v)
	return pts
}

func (ts Tiers) lookup(v float64) (float64, bool) {
	for _, t := range ts {
		if t.matches(v) {
			return t.Points, true
		}
	}
	return 0, false
}

// Policy is the full scoring table. It is built once at startup and read concurrently.
type Policy struct {
	NoHazardLabel  string
	HazardKeywords []string

	BaseNoHazard float64
	BaseHazard   float64
	BaseOther    float64

	Rainfall    Tiers
	WindSpeed   Tiers
	Temperature Tiers
	Pressure    Tiers
	Humidity    Tiers

	// Dry heat: applies only when no Humidity tier matched.
	DryHumidityBelow    float64
	DryTemperatureAbove float64
	DryHeatPoints       float64

	ConfidenceFloor float64
	ConfidenceSpan  float64
}

// DefaultPolicy returns the production scoring table.
func DefaultPolicy() Policy {
	return Policy{
		NoHazardLabel:  LabelLowRisk,
		HazardKeywords: []string{"Flood", "Cyclone", "Drought"},

		BaseNoHazard: 20,
		BaseHazard:   65,
		BaseOther:    40,

		Rainfall: Tiers{
			{Above, 70, 20},
			{Above, 50, 12},
			{Above, 30, 6},
			{Above, 10, 2},
		},
		WindSpeed: Tiers{
			{Above, 30, 20},
			{Above, 25, 15},
			{Above, 15, 8},
			{Above, 8, 3},
		},
		Temperature: Tiers{
			{Above, 40, 15},
			{Above, 38, 10},
			{Below, -5, 12},
			{Below, 0, 8},
		},
		Pressure: Tiers{
			{Below, 970, 15},
			{Below, 980, 10},
			{Below, 1000, 5},
		},
		Humidity: Tiers{
			{Above, 90, 8},
			{Above, 85, 5},
		},

		DryHumidityBelow:    30,
		DryTemperatureAbove: 35,
		DryHeatPoints:       5,

		ConfidenceFloor: 0.8,
		ConfidenceSpan:  0.4,
	}
}

// Breakdown explains how a score was reached.
type Breakdown struct {
	BaseRisk    float64 `json:"base_risk"`
	WeatherRisk float64 `json:"weather_risk"`
	Multiplier  float64 `json:"confidence_multiplier"`
	Value       float64 `json:"risk_score"`
}

// Scorer turns a classification and a reading into a 0–100 score.
type Scorer struct {
	policy Policy
}

func NewScorer(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

// Score returns the bounded risk value for label at the given model confidence.
func (s *Scorer) Score(label string, confidence float64, r weather.Reading) float64 {
	return s.Explain(label, confidence, r).Value
}

// Explain computes the score and keeps its parts.
func (s *Scorer) Explain(label string, confidence float64, r weather.Reading) Breakdown {
	base := s.BaseRisk(label)
	wx := s.WeatherRisk(r)
	mult := s.policy.ConfidenceFloor + common.Clamp(confidence, 0, 1)*s.policy.ConfidenceSpan

	raw := (base + wx) * mult
	return Breakdown{
		BaseRisk:    base,
		WeatherRisk: wx,
		Multiplier:  mult,
		Value:       common.Clamp(round2(raw), 0, 100),
	}
}

// BaseRisk maps a label onto its categorical prior.
func (s *Scorer) BaseRisk(label string) float64 {
	switch {
	case label == s.policy.NoHazardLabel:
		return s.policy.BaseNoHazard
	case common.HasAny(label, s.policy.HazardKeywords...):
		return s.policy.BaseHazard
	default:
		return s.policy.BaseOther
	}
}

// WeatherRisk sums the per-field step functions.
func (s *Scorer) WeatherRisk(r weather.Reading) float64 {
	p := s.policy
	total := p.Rainfall.points(r.Rainfall) +
		p.WindSpeed.points(r.WindSpeed) +
		p.Temperature.points(r.Temperature) +
		p.Pressure.points(r.Pressure)

	if hum, ok := p.Humidity.lookup(r.Humidity); ok {
		total += hum
	} else if r.Humidity < p.DryHumidityBelow && r.Temperature > p.DryTemperatureAbove {
		total += p.DryHeatPoints
	}
	return total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
