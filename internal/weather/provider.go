package weather

import (
	"context"
	"time"
)

// HourlyProvider abstracts an hourly weather source (Open-Meteo, OpenWeather One Call,
// WeatherAPI). Forecast-only sources may ignore date and return whatever window they cover.
type HourlyProvider interface {
	Name() string
	FetchHourly(ctx context.Context, at Coordinates, date time.Time) ([]HourlyReading, error)
}

// CurrentProvider returns a live weather snapshot for a point.
type CurrentProvider interface {
	Name() string
	Current(ctx context.Context, at Coordinates) (Reading, error)
}

// Geocoder resolves free text or coordinates into a Place.
// Implementations return ErrPlaceNotFound when nothing matches.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (Place, error)
	Reverse(ctx context.Context, at Coordinates) (Place, error)
}
