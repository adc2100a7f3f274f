package astro

import "time"

// TrendDirection is the calendar direction a day-length search walks.
type TrendDirection int

const (
	// TrendNone means no search: day length is not monotonic near the
	// solstices and the search could terminate on a trivial neighbor.
	TrendNone TrendDirection = iota

	// TrendForward looks for the next day at least as long as today
	// (days are shortening: "when will it be this long again").
	TrendForward

	// TrendBackward looks for the most recent day at least as long as
	// today (days are lengthening: "when was it last this long").
	TrendBackward
)

// SearchDirection maps a month to the trend search direction for a
// northern-hemisphere site. June and December are excluded outright.
func SearchDirection(m time.Month) TrendDirection {
	switch {
	case m >= time.January && m <= time.May:
		return TrendBackward
	case m >= time.July && m <= time.November:
		return TrendForward
	default:
		return TrendNone
	}
}

// maxSearchDays bounds the day-length search. Day length provably crosses
// the reference again within a year, but an early-September reference does
// not recur until the following April, so the bound must cover the far
// side of a solstice.
const maxSearchDays = 366

// MatchingDayLength scans consecutive days from today, in the season's
// search direction, and returns the first day whose length is at least
// ref, together with its events.
//
// Callers must treat ErrNoTrend and ErrSearchExhausted as "omit the
// narrative", never as fatal. The result is deterministic for a fixed
// (today, ref) pair.
func (o *Observer) MatchingDayLength(today time.Time, ref time.Duration) (*DayEvents, error) {
	dir := SearchDirection(today.In(o.Loc).Month())
	if dir == TrendNone {
		return nil, ErrNoTrend
	}

	step := 1
	if dir == TrendBackward {
		step = -1
	}

	cursor := today.In(o.Loc)
	for i := 0; i < maxSearchDays; i++ {
		cursor = cursor.AddDate(0, 0, step)
		ev, err := o.Day(cursor)
		if err != nil {
			return nil, err
		}
		if ev.DayLength >= ref {
			return ev, nil
		}
	}
	return nil, ErrSearchExhausted
}
