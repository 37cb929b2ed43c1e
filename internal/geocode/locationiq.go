package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-risk/internal/weather"
)

var errNoAPIKey = errors.New("geocoder API key not configured")

// LocationIQ implements weather.Geocoder using the LocationIQ search and reverse APIs.
type LocationIQ struct {
	key          string
	countryCodes string
	httpClient   *http.Client
	baseURL      string
	logger       *slog.Logger
}

// NewLocationIQ creates a LocationIQ client. Searches are restricted to countryCodes when set.
func NewLocationIQ(key, countryCodes string, timeout time.Duration, logger *slog.Logger) *LocationIQ {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationIQ{
		key:          key,
		countryCodes: countryCodes,
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      "https://us1.locationiq.com/v1",
		logger:       logger,
	}
}

// Resolve turns free text (city, village, pincode) into a place.
func (c *LocationIQ) Resolve(ctx context.Context, query string) (weather.Place, error) {
	params := url.Values{
		"key":              {c.key},
		"q":                {query},
		"format":           {"json"},
		"addressdetails":   {"1"},
		"normalizeaddress": {"1"},
		"limit":            {"1"},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	var results []searchResult
	if err := c.get(ctx, c.baseURL+"/search?"+params.Encode(), "forward", &results); err != nil {
		return weather.Place{}, err
	}
	if len(results) == 0 {
		return weather.Place{}, weather.ErrPlaceNotFound
	}

	r := results[0]
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)
	if errLat != nil || errLon != nil {
		return weather.Place{}, fmt.Errorf("locationiq: bad coordinates %q,%q", r.Lat, r.Lon)
	}
	return r.Address.place(lat, lon), nil
}

// Reverse names the place at a point. The returned coordinates are the ones asked for.
func (c *LocationIQ) Reverse(ctx context.Context, at weather.Coordinates) (weather.Place, error) {
	params := url.Values{
		"key":            {c.key},
		"lat":            {strconv.FormatFloat(at.Lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(at.Lon, 'f', 6, 64)},
		"format":         {"json"},
		"addressdetails": {"1"},
	}

	var result searchResult
	if err := c.get(ctx, c.baseURL+"/reverse?"+params.Encode(), "reverse", &result); err != nil {
		return weather.Place{}, err
	}
	return result.Address.place(at.Lat, at.Lon), nil
}

func (c *LocationIQ) get(ctx context.Context, fullURL, source string, out any) error {
	if c.key == "" {
		return errNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s geocode request: %w", source, err)
	}
	defer resp.Body.Close()

	// LocationIQ answers 404 "Unable to geocode" for queries without a match.
	if resp.StatusCode == http.StatusNotFound {
		return weather.ErrPlaceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("locationiq error", "source", source, "status", resp.StatusCode)
		return fmt.Errorf("locationiq API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// LocationIQ API response types.

type searchResult struct {
	Lat     string  `json:"lat"`
	Lon     string  `json:"lon"`
	Address address `json:"address"`
}

type address struct {
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	County        string `json:"county"`
	StateDistrict string `json:"state_district"`
	State         string `json:"state"`
}

func (a address) place(lat, lon float64) weather.Place {
	return weather.Place{
		City:     firstNonEmpty(a.City, a.Town, a.Village, a.County, a.State),
		District: a.StateDistrict,
		State:    a.State,
		Lat:      lat,
		Lon:      lon,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
