package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sunbot/internal/log"
)

// Trigger names. Interior captures get "capture-HH:MM" so every trigger in
// a day is uniquely named.
const (
	trigTwilightStart = "twilight-start"
	trigSunrise       = "sunrise"
	trigSunset        = "sunset"
	trigTwilightEnd   = "twilight-end"
	trigNightly       = "nightly"
)

// BuildDay computes today's solar events and installs the day's one-shot
// triggers: the four named events, plain captures for each interior
// top-of-hour stamp, and the nightly animation post. Events already past
// are skipped by the timetable.
//
// The events are computed before anything is cleared, so a computation
// failure leaves the previous schedule in place.
func (b *Bot) BuildDay(ctx context.Context) error {
	cfg, obs, _ := b.snapshot()

	now := b.now().In(obs.Loc)
	ev, err := obs.Day(now)
	if err != nil {
		return fmt.Errorf("build day: %w", err)
	}

	b.mu.Lock()
	b.today = ev
	b.mu.Unlock()

	if b.hist != nil {
		if err := b.hist.RecordDay(ctx, ev); err != nil {
			log.Error("day record failed", err)
		}
	}

	cleared := b.tt.ClearOneShots()

	seq := ev.Sequence
	n := len(seq)
	b.tt.AddOnce(trigTwilightStart, seq[0], b.twilightStartAction)
	b.tt.AddOnce(trigSunrise, seq[1], b.sunriseAction)
	for _, ts := range seq[2 : n-2] {
		name := "capture-" + ts.Format("15:04")
		b.tt.AddOnce(name, ts, b.captureOnlyAction)
	}
	b.tt.AddOnce(trigSunset, seq[n-2], b.sunsetAction)
	b.tt.AddOnce(trigTwilightEnd, seq[n-1], b.twilightEndAction)

	if len(cfg.Animations) > 0 {
		if at, err := timeOfDay(cfg.Schedule.NightlyAt, now); err != nil {
			log.Error("bad nightly_at; skipping nightly trigger", err, "value", cfg.Schedule.NightlyAt)
		} else {
			b.tt.AddOnce(trigNightly, at, b.nightlyAction)
		}
	}

	log.Info("day schedule built",
		"date", ev.Date.Format("2006-01-02"),
		"twilight_start", seq[0].Format("15:04"),
		"sunrise", seq[1].Format("15:04"),
		"sunset", seq[n-2].Format("15:04"),
		"twilight_end", seq[n-1].Format("15:04"),
		"day_length", formatHM(ev.DayLength),
		"triggers", n,
		"cleared", cleared,
	)
	return nil
}

// timeOfDay resolves "HH:MM" onto day's calendar date in day's zone.
func timeOfDay(hhmm string, day time.Time) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}
