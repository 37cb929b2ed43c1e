package weather

import (
	"math"
	"time"
)

// DateLayout is the calendar-date format used for target dates.
const DateLayout = "2006-01-02"

// HourKeyLayout formats a UTC timestamp into its hour key ("HH:MM").
const HourKeyLayout = "15:04"

// TemporalClass tells whether an hour lies before or after the fetch time.
type TemporalClass string

const (
	Past   TemporalClass = "past"
	Future TemporalClass = "future"
)

// Source identifies which provider supplied an hourly observation.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// Reading is an immutable weather snapshot. Values are metric:
// °C, %, hPa, m/s and mm accumulated over the last hour.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	WindSpeed   float64 `json:"wind_speed"`
	Rainfall    float64 `json:"rainfall"`
}

// Coordinates is a WGS-84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies on the globe.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Place is a resolved location.
type Place struct {
	City     string  `json:"city"`
	District string  `json:"district"`
	State    string  `json:"state"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// Coordinates returns the place's point.
func (p Place) Coordinates() Coordinates {
	return Coordinates{Lat: p.Lat, Lon: p.Lon}
}

// HourlyReading is a provider-native hourly value before reconciliation.
type HourlyReading struct {
	Timestamp time.Time // always UTC
	Reading
}

// HourlyObservation is one slot of a reconciled day.
type HourlyObservation struct {
	HourKey string        `json:"time"`
	Type    TemporalClass `json:"type"`
	Source  Source        `json:"source"`
	Reading
}

// DailyTimeline is the reconciled hourly view of one UTC calendar day.
// Hours that no provider supplied are absent from Hourly.
type DailyTimeline struct {
	Date       string              `json:"date"`
	Hourly     []HourlyObservation `json:"hourly"`
	DataPoints int                 `json:"data_points"`
	Complete   bool                `json:"complete"`
}
