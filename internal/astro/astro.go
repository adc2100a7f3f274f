// Package astro computes the site's daily solar events and the capture
// sequence derived from them. All computation happens on instants carrying
// the site's timezone; callers format for display only at the boundary.
package astro

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sixdouglas/suncalc"
)

var (
	// ErrComputation marks unusable coordinates or a day without a solvable
	// rising/setting (near-polar sites). Not retried; the caller skips that
	// rebuild and tries again on the next cycle.
	ErrComputation = errors.New("astro: computation failed")

	// ErrSearchExhausted is returned when the day-length search exceeds its
	// iteration bound.
	ErrSearchExhausted = errors.New("astro: day length search exhausted")

	// ErrNoTrend is returned in solstice months where day length is not
	// monotonic and the search is not attempted.
	ErrNoTrend = errors.New("astro: no trend search near solstice")
)

// Buffer around sunrise/sunset inside which top-of-hour captures are
// dropped, to avoid a near-duplicate of the event capture itself.
const eventBuffer = 10 * time.Minute

// Observer is a fixed geographic point plus the zone its wall clock runs in.
// Immutable once constructed; build one per site and share freely.
type Observer struct {
	Lat       float64
	Lon       float64
	Elevation float64
	Loc       *time.Location
}

// NewObserver parses decimal-degree coordinate strings and resolves the
// IANA timezone. Unparsable coordinates surface as ErrComputation so the
// failure is classified the same way as an unsolvable ephemeris.
func NewObserver(lat, lon string, elevationM float64, tz string) (*Observer, error) {
	latF, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad latitude %q: %v", ErrComputation, lat, err)
	}
	lonF, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad longitude %q: %v", ErrComputation, lon, err)
	}
	if latF < -90 || latF > 90 || lonF < -180 || lonF > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range (%v, %v)", ErrComputation, latF, lonF)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("astro: unknown timezone %q: %w", tz, err)
	}
	return &Observer{Lat: latF, Lon: lonF, Elevation: elevationM, Loc: loc}, nil
}

// DayEvents holds one calendar day's solar instants, in the observer's
// zone, and the derived capture sequence. Immutable once produced.
type DayEvents struct {
	Date time.Time `json:"date"`

	TwilightStart time.Time `json:"twilight_start"`
	Sunrise       time.Time `json:"sunrise"`
	Sunset        time.Time `json:"sunset"`
	TwilightEnd   time.Time `json:"twilight_end"`

	// DayLength is sunset minus sunrise.
	DayLength time.Duration `json:"day_length"`

	// Sequence is the ordered capture moments: twilight start, sunrise,
	// interior top-of-hour stamps, sunset, twilight end.
	Sequence []time.Time `json:"sequence"`
}

// Day computes the solar events for the calendar day containing date.
//
// The ephemeris is anchored at local noon so the rising found is
// unambiguously "this morning's" and the setting "this evening's". Civil
// twilight bounds come from the 6°-depressed horizon (suncalc dawn/dusk);
// sunrise/sunset from the standard refraction-corrected horizon.
func (o *Observer) Day(date time.Time) (*DayEvents, error) {
	date = date.In(o.Loc)
	anchor := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, o.Loc)

	times := suncalc.GetTimesWithObserver(anchor, suncalc.Observer{
		Latitude:  o.Lat,
		Longitude: o.Lon,
		Height:    o.Elevation,
		Location:  o.Loc,
	})

	ev := &DayEvents{
		Date:          time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, o.Loc),
		TwilightStart: times[suncalc.Dawn].Value.In(o.Loc),
		Sunrise:       times[suncalc.Sunrise].Value.In(o.Loc),
		Sunset:        times[suncalc.Sunset].Value.In(o.Loc),
		TwilightEnd:   times[suncalc.Dusk].Value.In(o.Loc),
	}

	if err := ev.validate(anchor); err != nil {
		return nil, err
	}

	ev.DayLength = ev.Sunset.Sub(ev.Sunrise)
	ev.Sequence = buildSequence(ev.TwilightStart, ev.Sunrise, ev.Sunset, ev.TwilightEnd)
	return ev, nil
}

// validate rejects days where any event is missing or out of order, which
// is how suncalc's polar-day/polar-night output shows up. Temperate sites
// never trip this.
func (ev *DayEvents) validate(anchor time.Time) error {
	for _, t := range []time.Time{ev.TwilightStart, ev.Sunrise, ev.Sunset, ev.TwilightEnd} {
		if t.IsZero() {
			return fmt.Errorf("%w: missing solar event on %s", ErrComputation, anchor.Format("2006-01-02"))
		}
		if d := t.Sub(anchor); d < -36*time.Hour || d > 36*time.Hour {
			return fmt.Errorf("%w: implausible solar event %s on %s", ErrComputation, t, anchor.Format("2006-01-02"))
		}
	}
	if !ev.TwilightStart.Before(ev.Sunrise) || !ev.Sunrise.Before(ev.Sunset) || !ev.Sunset.Before(ev.TwilightEnd) {
		return fmt.Errorf("%w: events out of order on %s", ErrComputation, anchor.Format("2006-01-02"))
	}
	return nil
}

// buildSequence assembles the ordered capture moments: the four events plus
// every top-of-hour stamp strictly inside (sunrise+10m, sunset-10m).
func buildSequence(twilightStart, sunrise, sunset, twilightEnd time.Time) []time.Time {
	seq := []time.Time{twilightStart, sunrise}

	lo := sunrise.Add(eventBuffer)
	hi := sunset.Add(-eventBuffer)

	next := sunrise
	for next.Before(sunset) {
		next = nextTopOfHour(next)
		if next.After(lo) && next.Before(hi) {
			seq = append(seq, next)
		}
	}

	seq = append(seq, sunset, twilightEnd)
	return seq
}

// nextTopOfHour returns the first HH:00:00 after t, in t's own zone.
// time.Truncate would round on UTC hours, which is wrong for zones with
// fractional offsets.
func nextTopOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
}
