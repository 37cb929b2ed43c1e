package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-risk/internal/weather"
)

// OpenWeatherProvider serves live snapshots (/data/2.5/weather) and the hourly forecast of
// the One Call API (/data/3.0/onecall). The hourly feed starts at the current hour, so it
// never covers past dates.
type OpenWeatherProvider struct {
	name       string
	apiKey     string
	currentURL string
	onecallURL string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, backoff BackoffConfig) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:       "openweather",
		apiKey:     apiKey,
		currentURL: "https://api.openweathermap.org/data/2.5/weather",
		onecallURL: "https://api.openweathermap.org/data/3.0/onecall",
		httpCfg:    HTTPClientConfig{Client: client, Backoff: backoff},
		circuit:    newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) query(at weather.Coordinates) url.Values {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(at.Lon, 'f', -1, 64))
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	return values
}

// Current returns the live reading. A missing rain block means no rain in the last hour.
func (p *OpenWeatherProvider) Current(ctx context.Context, at weather.Coordinates) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	var payload struct {
		Main *struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
			Pressure float64 `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain struct {
			OneH float64 `json:"1h"`
		} `json:"rain"`
	}

	u := fmt.Sprintf("%s?%s", p.currentURL, p.query(at).Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return weather.Reading{}, err
	}
	if payload.Main == nil {
		return weather.Reading{}, fmt.Errorf("%w: missing main block", errMalformed)
	}

	return weather.Reading{
		Temperature: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		WindSpeed:   payload.Wind.Speed,
		Rainfall:    payload.Rain.OneH,
	}, nil
}

// FetchHourly returns the forecast hours the One Call API currently offers. date is not
// sent upstream; the reconciler keeps only the hours that fall on it.
func (p *OpenWeatherProvider) FetchHourly(ctx context.Context, at weather.Coordinates, _ time.Time) ([]weather.HourlyReading, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	values := p.query(at)
	values.Set("exclude", "current,minutely,daily,alerts")

	var payload struct {
		Hourly []struct {
			Dt        int64   `json:"dt"`
			Temp      float64 `json:"temp"`
			Humidity  float64 `json:"humidity"`
			Pressure  float64 `json:"pressure"`
			WindSpeed float64 `json:"wind_speed"`
			Rain      struct {
				OneH float64 `json:"1h"`
			} `json:"rain"`
		} `json:"hourly"`
	}

	u := fmt.Sprintf("%s?%s", p.onecallURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}

	out := make([]weather.HourlyReading, 0, len(payload.Hourly))
	for _, h := range payload.Hourly {
		out = append(out, weather.HourlyReading{
			Timestamp: time.Unix(h.Dt, 0).UTC(),
			Reading: weather.Reading{
				Temperature: h.Temp,
				Humidity:    h.Humidity,
				Pressure:    h.Pressure,
				WindSpeed:   h.WindSpeed,
				Rainfall:    h.Rain.OneH,
			},
		})
	}
	return out, nil
}
