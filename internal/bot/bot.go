// Package bot wires the astronomical engine to the timetable: it builds
// each day's trigger set and owns the composed actions the triggers fire.
package bot

import (
	"context"
	"sync"
	"time"

	"sunbot/internal/anim"
	"sunbot/internal/astro"
	"sunbot/internal/capture"
	"sunbot/internal/colors"
	"sunbot/internal/config"
	"sunbot/internal/history"
	"sunbot/internal/log"
	"sunbot/internal/metrics"
	"sunbot/internal/publish"
	"sunbot/internal/sched"
)

// Bot owns the daily schedule and its actions. Collaborators are function
// fields so tests can stub the chromium/ffmpeg/network edges.
type Bot struct {
	mu    sync.Mutex
	cfg   *config.Config
	obs   *astro.Observer
	today *astro.DayEvents

	tt   *sched.Timetable
	pub  publish.Publisher
	hist *history.Store
	now  func() time.Time

	captureFn func(ctx context.Context, opts capture.Options) error
	extractFn func(path string) (*colors.Palette, error)
	animateFn func(ctx context.Context, url, dir, name string, framerate int, hold time.Duration) (string, error)
}

// New builds the bot from config. hist may be nil (no persistence).
func New(cfg *config.Config, tt *sched.Timetable, pub publish.Publisher, hist *history.Store) (*Bot, error) {
	obs, err := astro.NewObserver(cfg.Site.Latitude, cfg.Site.Longitude, cfg.Site.Elevation, cfg.Site.Timezone)
	if err != nil {
		return nil, err
	}
	fetcher := anim.NewFetcher()
	return &Bot{
		cfg:       cfg,
		obs:       obs,
		tt:        tt,
		pub:       pub,
		hist:      hist,
		now:       time.Now,
		captureFn: capture.Grab,
		extractFn: colors.Extract,
		animateFn: fetcher.FetchAndAnimate,
	}, nil
}

// Start arms the recurring pre-dawn rebuild and builds today's schedule
// immediately, so a mid-day process start still covers the remaining
// events (past ones are skipped by the timetable).
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	spec := b.cfg.Schedule.Rebuild
	b.mu.Unlock()

	if err := b.tt.AddRecurring("rebuild", spec, b.rebuild); err != nil {
		return err
	}
	return b.rebuild(ctx)
}

// SetConfig swaps the configuration (hot reload). The observer is rebuilt;
// a bad site config keeps the previous one. Callers must follow up with a
// rebuild on the timetable goroutine.
func (b *Bot) SetConfig(cfg *config.Config) error {
	obs, err := astro.NewObserver(cfg.Site.Latitude, cfg.Site.Longitude, cfg.Site.Elevation, cfg.Site.Timezone)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.cfg = cfg
	b.obs = obs
	b.mu.Unlock()
	return nil
}

// Reload applies cfg and rebuilds the day. Meant to run on the timetable
// goroutine via Timetable.Do.
func (b *Bot) Reload(ctx context.Context, cfg *config.Config) {
	if err := b.SetConfig(cfg); err != nil {
		log.Error("config reload rejected", err)
		return
	}
	if err := b.tt.AddRecurring("rebuild", cfg.Schedule.Rebuild, b.rebuild); err != nil {
		log.Error("rebuild spec rejected", err, "spec", cfg.Schedule.Rebuild)
	}
	if err := b.rebuild(ctx); err != nil {
		log.Error("rebuild after reload failed", err)
	}
}

// Today returns the most recently computed day events (may be nil before
// the first successful rebuild). Safe for the status API.
func (b *Bot) Today() *astro.DayEvents {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.today
}

func (b *Bot) snapshot() (*config.Config, *astro.Observer, *astro.DayEvents) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg, b.obs, b.today
}

// rebuild is the recurring trigger's action: recompute the day and replace
// every one-shot. A computation failure aborts the rebuild and leaves the
// timetable untouched until the next cycle.
func (b *Bot) rebuild(ctx context.Context) error {
	if err := b.BuildDay(ctx); err != nil {
		return err
	}
	metrics.RebuildDone()
	return nil
}
