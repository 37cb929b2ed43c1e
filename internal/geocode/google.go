package geocode

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-risk/internal/weather"
)

// The geocoder package keeps its key in a package variable.
var googleKeyOnce sync.Once

// Google implements weather.Geocoder on top of the Google Geocoding API.
type Google struct {
	country string
}

// NewGoogle configures the Google client. Only the first key set in a process is used.
func NewGoogle(apiKey, country string) *Google {
	googleKeyOnce.Do(func() { geocoder.ApiKey = apiKey })
	return &Google{country: country}
}

func (g *Google) Resolve(ctx context.Context, query string) (weather.Place, error) {
	if geocoder.ApiKey == "" {
		return weather.Place{}, errNoAPIKey
	}

	loc, err := call(ctx, func() (geocoder.Location, error) {
		return geocoder.Geocoding(geocoder.Address{City: query, Country: g.country})
	})
	if err != nil {
		return weather.Place{}, fmt.Errorf("google geocode: %w", err)
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return weather.Place{}, weather.ErrPlaceNotFound
	}

	// Forward results carry only a point; names come from the reverse lookup.
	at := weather.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}
	place, err := g.Reverse(ctx, at)
	if err != nil {
		return weather.Place{City: query, Lat: at.Lat, Lon: at.Lon}, nil
	}
	return place, nil
}

func (g *Google) Reverse(ctx context.Context, at weather.Coordinates) (weather.Place, error) {
	if geocoder.ApiKey == "" {
		return weather.Place{}, errNoAPIKey
	}

	addrs, err := call(ctx, func() ([]geocoder.Address, error) {
		return geocoder.GeocodingReverse(geocoder.Location{Latitude: at.Lat, Longitude: at.Lon})
	})
	if err != nil {
		return weather.Place{}, fmt.Errorf("google reverse geocode: %w", err)
	}
	if len(addrs) == 0 {
		return weather.Place{}, weather.ErrPlaceNotFound
	}
	return placeFromAddress(addrs[0], at), nil
}

func placeFromAddress(a geocoder.Address, at weather.Coordinates) weather.Place {
	return weather.Place{
		City:     firstNonEmpty(a.City, a.District, a.County, a.State),
		District: a.County,
		State:    a.State,
		Lat:      at.Lat,
		Lon:      at.Lon,
	}
}

// call runs a blocking library call and gives up when ctx ends first.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}
