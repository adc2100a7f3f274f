package astro

import (
	"errors"
	"testing"
	"time"
)

// The original deployment site; all four events occur daily there.
func grandForks(t *testing.T) *Observer {
	t.Helper()
	obs, err := NewObserver("47.925259", "-97.032852", 257, "America/Chicago")
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	return obs
}

func TestDayEventOrdering(t *testing.T) {
	obs := grandForks(t)
	date := time.Date(2021, time.September, 3, 17, 0, 0, 0, time.UTC)

	ev, err := obs.Day(date)
	if err != nil {
		t.Fatalf("Day: %v", err)
	}

	if !ev.TwilightStart.Before(ev.Sunrise) {
		t.Errorf("twilight start %v not before sunrise %v", ev.TwilightStart, ev.Sunrise)
	}
	if !ev.Sunrise.Before(ev.Sunset) {
		t.Errorf("sunrise %v not before sunset %v", ev.Sunrise, ev.Sunset)
	}
	if !ev.Sunset.Before(ev.TwilightEnd) {
		t.Errorf("sunset %v not before twilight end %v", ev.Sunset, ev.TwilightEnd)
	}

	if got, want := ev.DayLength, ev.Sunset.Sub(ev.Sunrise); got != want {
		t.Errorf("day length %v, want sunset-sunrise %v", got, want)
	}
	if ev.DayLength <= 0 || ev.DayLength >= 24*time.Hour {
		t.Errorf("day length %v out of (0, 24h)", ev.DayLength)
	}

	// Early September at 48°N: sunrise is well before local noon.
	noon := time.Date(2021, time.September, 3, 12, 0, 0, 0, obs.Loc)
	if !ev.Sunrise.Before(noon) {
		t.Errorf("sunrise %v not before local noon", ev.Sunrise)
	}
}

func TestSequenceShape(t *testing.T) {
	obs := grandForks(t)

	for _, date := range []time.Time{
		time.Date(2021, time.March, 15, 12, 0, 0, 0, obs.Loc),
		time.Date(2021, time.June, 21, 12, 0, 0, 0, obs.Loc),
		time.Date(2021, time.September, 3, 12, 0, 0, 0, obs.Loc),
		time.Date(2021, time.December, 21, 12, 0, 0, 0, obs.Loc),
	} {
		t.Run(date.Format("2006-01-02"), func(t *testing.T) {
			ev, err := obs.Day(date)
			if err != nil {
				t.Fatalf("Day: %v", err)
			}

			seq := ev.Sequence
			n := len(seq)
			if n < 4 {
				t.Fatalf("sequence too short: %d", n)
			}
			if !seq[0].Equal(ev.TwilightStart) || !seq[1].Equal(ev.Sunrise) ||
				!seq[n-2].Equal(ev.Sunset) || !seq[n-1].Equal(ev.TwilightEnd) {
				t.Errorf("sequence ends don't match events: %v", seq)
			}

			for i := 1; i < n; i++ {
				if !seq[i-1].Before(seq[i]) {
					t.Errorf("sequence not strictly ascending at %d: %v >= %v", i, seq[i-1], seq[i])
				}
			}

			lo := ev.Sunrise.Add(10 * time.Minute)
			hi := ev.Sunset.Add(-10 * time.Minute)
			for _, ts := range seq[2 : n-2] {
				if ts.Minute() != 0 || ts.Second() != 0 {
					t.Errorf("interior entry %v is not a top-of-hour stamp", ts)
				}
				if !ts.After(lo) || !ts.Before(hi) {
					t.Errorf("interior entry %v outside (%v, %v)", ts, lo, hi)
				}
			}
		})
	}
}

func TestBuildSequenceInterior(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatal(err)
	}
	day := func(h, m int) time.Time {
		return time.Date(2021, time.September, 3, h, m, 0, 0, loc)
	}

	// Sunrise 06:47, sunset 20:03. 07:00 clears the sunrise buffer
	// (06:57) and stays; 20:00 lands past the sunset buffer (19:53) and
	// is dropped.
	seq := buildSequence(day(6, 12), day(6, 47), day(20, 3), day(20, 37))

	wantInterior := []time.Time{
		day(7, 0), day(8, 0), day(9, 0), day(10, 0), day(11, 0), day(12, 0),
		day(13, 0), day(14, 0), day(15, 0), day(16, 0), day(17, 0), day(18, 0),
		day(19, 0),
	}
	got := seq[2 : len(seq)-2]
	if len(got) != len(wantInterior) {
		t.Fatalf("interior count %d, want %d: %v", len(got), len(wantInterior), got)
	}
	for i := range got {
		if !got[i].Equal(wantInterior[i]) {
			t.Errorf("interior[%d] = %v, want %v", i, got[i], wantInterior[i])
		}
	}
}

func TestNewObserverRejectsGarbage(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon string
	}{
		{"bad latitude", "north-ish", "-97.0"},
		{"bad longitude", "47.9", "west"},
		{"latitude out of range", "91.0", "0"},
		{"longitude out of range", "0", "181.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewObserver(tc.lat, tc.lon, 0, "UTC")
			if !errors.Is(err, ErrComputation) {
				t.Errorf("got %v, want ErrComputation", err)
			}
		})
	}
}

func TestPolarDayFails(t *testing.T) {
	obs, err := NewObserver("89.9", "0", 0, "UTC")
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	_, err = obs.Day(time.Date(2021, time.December, 21, 12, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrComputation) {
		t.Errorf("got %v, want ErrComputation", err)
	}
}
