package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-risk/internal/weather"
)

// WeatherAPIProvider is an alternative secondary source backed by WeatherAPI.com's
// forecast endpoint. Like One Call it only reaches forward from today.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	days    int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, backoff BackoffConfig) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		days:    3,
		httpCfg: HTTPClientConfig{Client: client, Backoff: backoff},
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchHourly(ctx context.Context, at weather.Coordinates, _ time.Time) ([]weather.HourlyReading, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	values.Set("q", fmt.Sprintf("%f,%f", at.Lat, at.Lon))
	values.Set("days", fmt.Sprint(p.days))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	var payload struct {
		Forecast struct {
			Forecastday []struct {
				Hour []struct {
					TimeEpoch  int64   `json:"time_epoch"`
					TempC      float64 `json:"temp_c"`
					Humidity   float64 `json:"humidity"`
					WindKph    float64 `json:"wind_kph"`
					PressureMb float64 `json:"pressure_mb"`
					PrecipMm   float64 `json:"precip_mm"`
				} `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}

	var out []weather.HourlyReading
	for _, day := range payload.Forecast.Forecastday {
		for _, h := range day.Hour {
			out = append(out, weather.HourlyReading{
				Timestamp: time.Unix(h.TimeEpoch, 0).UTC(),
				Reading: weather.Reading{
					Temperature: h.TempC,
					Humidity:    h.Humidity,
					WindSpeed:   h.WindKph / 3.6, // kph to m/s
					Pressure:    h.PressureMb,
					Rainfall:    h.PrecipMm,
				},
			})
		}
	}
	return out, nil
}
