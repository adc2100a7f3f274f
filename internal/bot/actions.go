package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"sunbot/internal/astro"
	"sunbot/internal/capture"
	"sunbot/internal/colors"
	"sunbot/internal/log"
	"sunbot/internal/metrics"
	"sunbot/internal/publish"
)

// Composed trigger actions. Each one captures a frame and posts it; the
// named events add their extra step on top. A failed capture aborts the
// rest of that action's work but never touches other triggers; the run
// loop must survive any single day's bad network call.

func (b *Bot) captureOnlyAction(ctx context.Context) error {
	_, _, err := b.captureAndPost(ctx, "capture", "")
	return err
}

func (b *Bot) twilightStartAction(ctx context.Context) error {
	cfg, _, _ := b.snapshot()
	text := fmt.Sprintf("Civil twilight has begun in %s.", cfg.Site.Name)
	_, _, err := b.captureAndPost(ctx, trigTwilightStart, text)
	return err
}

// sunriseAction posts the sunrise frame, then follows up with the daylight
// trend narrative when the season supports one.
func (b *Bot) sunriseAction(ctx context.Context) error {
	cfg, obs, today := b.snapshot()
	if today == nil {
		return errors.New("sunrise: no day events")
	}

	text := fmt.Sprintf("Sunrise in %s at %s. Today is %s of daylight.",
		cfg.Site.Name, today.Sunrise.Format("3:04 PM"), formatHM(today.DayLength))
	msgID, _, err := b.captureAndPost(ctx, trigSunrise, text)
	if err != nil {
		return err
	}

	if note := b.trendNarrative(obs, today); note != "" {
		if _, err := b.pub.Publish(ctx, publish.Message{Text: note, ReplyTo: msgID}); err != nil {
			log.Error("trend post failed", err, "local_time", b.localClock())
		}
	}
	return nil
}

// sunsetAction posts the sunset frame with tomorrow's day-length delta.
func (b *Bot) sunsetAction(ctx context.Context) error {
	cfg, obs, today := b.snapshot()
	if today == nil {
		return errors.New("sunset: no day events")
	}

	text := fmt.Sprintf("Sunset in %s at %s.", cfg.Site.Name, today.Sunset.Format("3:04 PM"))
	if tomorrow, err := obs.Day(today.Date.AddDate(0, 0, 1)); err != nil {
		log.Error("tomorrow computation failed", err, "local_time", b.localClock())
	} else {
		text += " " + deltaNarrative(tomorrow.DayLength - today.DayLength)
	}

	_, _, err := b.captureAndPost(ctx, trigSunset, text)
	return err
}

// twilightEndAction closes the day: final frame, then the color summary
// threaded under the day's first post.
func (b *Bot) twilightEndAction(ctx context.Context) error {
	cfg, _, today := b.snapshot()
	if today == nil {
		return errors.New("twilight-end: no day events")
	}

	text := fmt.Sprintf("Civil twilight has ended in %s. Goodnight!", cfg.Site.Name)
	_, path, err := b.captureAndPost(ctx, trigTwilightEnd, text)
	if err != nil {
		return err
	}

	pal, err := b.extractFn(path)
	if err != nil || len(pal.Ordered) == 0 {
		log.Error("color extraction failed", err, "image", path, "local_time", b.localClock())
		return nil
	}

	hexes := make([]string, 0, len(pal.Ordered))
	for _, c := range pal.Ordered {
		hexes = append(hexes, colors.Hex(c))
	}
	summary := fmt.Sprintf("Today's sky: dominant %s, average %s. Palette: %s.",
		colors.Hex(pal.Dominant), colors.Hex(pal.Average), strings.Join(hexes, " "))

	replyTo := 0
	if b.hist != nil {
		if id, ok, err := b.hist.FirstPost(ctx, today.Date); err != nil {
			log.Error("first post lookup failed", err)
		} else if ok {
			replyTo = id
		}
	}
	if _, err := b.pub.Publish(ctx, publish.Message{Text: summary, ReplyTo: replyTo}); err != nil {
		log.Error("color summary post failed", err, "local_time", b.localClock())
	}
	return nil
}

// nightlyAction fetches each configured animation source and posts the
// encoded video. Sources fail independently.
func (b *Bot) nightlyAction(ctx context.Context) error {
	cfg, _, _ := b.snapshot()
	date := b.now().Format("2006-01-02")

	var firstErr error
	for _, a := range cfg.Animations {
		dir := filepath.Join(cfg.Capture.OutputDir, "animations", slug(a.Name), date)
		out, err := b.animateFn(ctx, a.URL, dir, "animation.mp4",
			a.Framerate, time.Duration(a.HoldLastSec)*time.Second)
		if err != nil {
			log.Error("animation failed", err, "name", a.Name, "local_time", b.localClock())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		text := fmt.Sprintf("Tonight's %s.", a.Name)
		if _, err := b.pub.Publish(ctx, publish.Message{Text: text, VideoPath: out}); err != nil {
			log.Error("animation post failed", err, "name", a.Name, "local_time", b.localClock())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// captureAndPost grabs a frame and publishes it with text (when non-empty,
// otherwise a bare photo). Returns the message id and the capture path.
func (b *Bot) captureAndPost(ctx context.Context, kind, text string) (int, string, error) {
	cfg, obs, _ := b.snapshot()
	now := b.now().In(obs.Loc)

	path := filepath.Join(cfg.Capture.OutputDir, now.Format("2006-01-02"), now.Format("150405")+".png")
	err := b.captureFn(ctx, capture.Options{
		URL:          cfg.Capture.URL,
		OutputPath:   path,
		WaitSelector: cfg.Capture.WaitSelector,
		Width:        cfg.Capture.Width,
		Height:       cfg.Capture.Height,
		Timeout:      time.Duration(cfg.Capture.TimeoutSec) * time.Second,
	})
	metrics.CaptureDone(err == nil)
	if err != nil {
		return 0, "", fmt.Errorf("%s capture: %w", kind, err)
	}

	msgID, err := b.pub.Publish(ctx, publish.Message{Text: text, ImagePath: path})
	if err != nil {
		return 0, path, fmt.Errorf("%s post: %w", kind, err)
	}
	if b.hist != nil {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, obs.Loc)
		if err := b.hist.RecordPost(ctx, day, kind, msgID); err != nil {
			log.Error("post record failed", err, "kind", kind)
		}
	}
	return msgID, path, nil
}

// trendNarrative answers "since/until when has daylight been like this".
// Empty in solstice months or when the search gives up.
func (b *Bot) trendNarrative(obs *astro.Observer, today *astro.DayEvents) string {
	match, err := obs.MatchingDayLength(today.Date, today.DayLength)
	if err != nil {
		if !errors.Is(err, astro.ErrNoTrend) {
			log.Error("day length search failed", err)
		}
		return ""
	}
	date := match.Date.Format("January 2")
	switch astro.SearchDirection(today.Date.Month()) {
	case astro.TrendForward:
		return fmt.Sprintf("Days are getting shorter. The next day with this much daylight is %s.", date)
	case astro.TrendBackward:
		return fmt.Sprintf("Days are getting longer. The last day with this much daylight was %s.", date)
	}
	return ""
}

func deltaNarrative(delta time.Duration) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("Tomorrow will be %s longer.", formatMS(delta))
	case delta < 0:
		return fmt.Sprintf("Tomorrow will be %s shorter.", formatMS(-delta))
	default:
		return "Tomorrow will be just as long."
	}
}

func (b *Bot) localClock() string {
	_, obs, _ := b.snapshot()
	return b.now().In(obs.Loc).Format("15:04:05")
}

func formatHM(d time.Duration) string {
	d = d.Round(time.Minute)
	return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
}

func formatMS(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
