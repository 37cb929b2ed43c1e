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

const openMeteoTimeLayout = "2006-01-02T15:04"

// OpenMeteoProvider is the primary hourly source. It serves both recent past and forecast
// hours for an explicit date range and needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, backoff BackoffConfig) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "open-meteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: HTTPClientConfig{Client: client, Backoff: backoff},
		circuit: newBreaker("open-meteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoHourly struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		Pressure      []*float64 `json:"pressure_msl"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		Precipitation []*float64 `json:"precipitation"`
	} `json:"hourly"`
}

// FetchHourly returns the hourly series for date. Hours with any null field are dropped
// rather than defaulted.
func (p *OpenMeteoProvider) FetchHourly(ctx context.Context, at weather.Coordinates, date time.Time) ([]weather.HourlyReading, error) {
	day := date.UTC().Format(weather.DateLayout)

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(at.Lon, 'f', -1, 64))
	values.Set("hourly", "temperature_2m,relative_humidity_2m,pressure_msl,wind_speed_10m,precipitation")
	values.Set("wind_speed_unit", "ms")
	values.Set("start_date", day)
	values.Set("end_date", day)
	values.Set("timezone", "UTC")

	var payload openMeteoHourly
	if err := getJSON(ctx, p.httpCfg, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	out := make([]weather.HourlyReading, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, err := time.ParseInLocation(openMeteoTimeLayout, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: hourly time %q", errMalformed, raw)
		}

		temp, ok1 := floatAt(h.Temperature, i)
		hum, ok2 := floatAt(h.Humidity, i)
		pres, ok3 := floatAt(h.Pressure, i)
		wind, ok4 := floatAt(h.WindSpeed, i)
		rain, ok5 := floatAt(h.Precipitation, i)
		if !(ok1 && ok2 && ok3 && ok4 && ok5) {
			continue
		}

		out = append(out, weather.HourlyReading{
			Timestamp: ts,
			Reading: weather.Reading{
				Temperature: temp,
				Humidity:    hum,
				Pressure:    pres,
				WindSpeed:   wind,
				Rainfall:    rain,
			},
		})
	}
	return out, nil
}
