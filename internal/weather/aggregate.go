package weather

import (
	"fmt"
	"sort"
	"time"
)

// hourMap holds at most one observation per hour key of a single day.
type hourMap map[string]HourlyObservation

// addPrimary inserts every reading that falls on day. Past/future is decided against now.
// Later calls never replace an existing key.
func (m hourMap) addPrimary(day time.Time, now time.Time, readings []HourlyReading) int {
	added := 0
	for _, r := range readings {
		ts := r.Timestamp.UTC()
		if !sameDay(ts, day) {
			continue
		}
		key := ts.Format(HourKeyLayout)
		if _, exists := m[key]; exists {
			continue
		}
		class := Future
		if ts.Before(now) {
			class = Past
		}
		m[key] = HourlyObservation{HourKey: key, Type: class, Source: SourcePrimary, Reading: r.Reading}
		added++
	}
	return added
}

// addSecondary fills hours the primary source left empty. Secondary data is forecast
// data, so every inserted hour is classed as future.
func (m hourMap) addSecondary(day time.Time, readings []HourlyReading) int {
	added := 0
	for _, r := range readings {
		ts := r.Timestamp.UTC()
		if !sameDay(ts, day) {
			continue
		}
		key := ts.Format(HourKeyLayout)
		if _, exists := m[key]; exists {
			continue
		}
		m[key] = HourlyObservation{HourKey: key, Type: Future, Source: SourceSecondary, Reading: r.Reading}
		added++
	}
	return added
}

// timeline materializes the map sorted by hour key. Zero-padded "HH:MM" keys sort
// chronologically.
func (m hourMap) timeline(day time.Time) DailyTimeline {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hourly := make([]HourlyObservation, 0, len(keys))
	for _, k := range keys {
		hourly = append(hourly, m[k])
	}

	return DailyTimeline{
		Date:       day.Format(DateLayout),
		Hourly:     hourly,
		DataPoints: len(hourly),
		Complete:   len(hourly) == 24,
	}
}

func sameDay(ts, day time.Time) bool {
	y1, m1, d1 := ts.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC. An empty string yields today.
func ParseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		n := now.UTC()
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return d, nil
}
