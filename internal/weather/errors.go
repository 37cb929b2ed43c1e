package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed coordinates or dates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable marks a single provider failure. It is absorbed by the
	// reconciler and only surfaces through logs and metrics.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrTimelineUnavailable is returned when no provider contributed any hour.
	ErrTimelineUnavailable = errors.New("timeline unavailable")

	// ErrPlaceNotFound is returned by geocoders when a query matches nothing.
	ErrPlaceNotFound = errors.New("location not found")
)

// ProviderError wraps a failure from a named provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}
