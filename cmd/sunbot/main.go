package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"sunbot/internal/astro"
	"sunbot/internal/bot"
	"sunbot/internal/config"
	"sunbot/internal/history"
	"sunbot/internal/log"
	"sunbot/internal/publish"
	"sunbot/internal/sched"
	"sunbot/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		log.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	log.SetLevel(conf.LogLevel)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	log.Info("sunbot starting",
		"site", conf.Site.Name,
		"lat", conf.Site.Latitude,
		"lon", conf.Site.Longitude,
		"timezone", conf.Site.Timezone,
		"rebuild", conf.Schedule.Rebuild,
		"listen", conf.Listen,
		"once", flags.once,
	)

	if flags.once {
		if err := printToday(conf); err != nil {
			log.Error("day computation failed", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, flags.configPath); err != nil && ctx.Err() == nil {
		log.Error("fatal", err)
		os.Exit(1)
	}

	// Give cleanup hooks a moment (sqlite WAL checkpoint on close).
	time.Sleep(100 * time.Millisecond)
	log.Info("sunbot exiting")
}

func run(ctx context.Context, conf *config.Config, configPath string) error {
	obs, err := astro.NewObserver(conf.Site.Latitude, conf.Site.Longitude, conf.Site.Elevation, conf.Site.Timezone)
	if err != nil {
		return err
	}

	var pub publish.Publisher = publish.Discard{}
	if conf.Publish.Enabled {
		tg, err := publish.NewTelegram(conf.Publish.Token, conf.Publish.ChatID, conf.Publish.RatePerMin)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		pub = tg
	}

	hist, err := history.Open(conf.HistoryPath)
	if err != nil {
		// Persistence is a convenience, not a requirement; run without it.
		log.Error("history store unavailable; continuing without it", err, "path", conf.HistoryPath)
		hist = nil
	} else {
		defer hist.Close()
	}

	tt := sched.New(obs.Loc)
	b, err := bot.New(conf, tt, pub, hist)
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		// A failed first build is not fatal: the recurring rebuild retries
		// at the next pre-dawn cycle.
		log.Error("initial schedule build failed", err)
	}

	go func() {
		if err := web.Serve(ctx, conf, b, tt); err != nil {
			log.Error("HTTP server failed", err)
		}
	}()

	go func() {
		err := config.Watch(ctx, configPath, func(cfg *config.Config) {
			tt.Do(func(ctx context.Context) { b.Reload(ctx, cfg) })
		})
		if err != nil {
			log.Error("config watch unavailable", err)
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	defer func() { _, _ = daemon.SdNotify(false, daemon.SdNotifyStopping) }()

	err = tt.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// printToday computes and prints the day's event sequence, then exits.
// Useful for checking a site config without running the daemon.
func printToday(conf *config.Config) error {
	obs, err := astro.NewObserver(conf.Site.Latitude, conf.Site.Longitude, conf.Site.Elevation, conf.Site.Timezone)
	if err != nil {
		return err
	}
	ev, err := obs.Day(time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("date:           %s\n", ev.Date.Format("2006-01-02"))
	fmt.Printf("twilight start: %s\n", ev.TwilightStart.Format("15:04:05"))
	fmt.Printf("sunrise:        %s\n", ev.Sunrise.Format("15:04:05"))
	fmt.Printf("sunset:         %s\n", ev.Sunset.Format("15:04:05"))
	fmt.Printf("twilight end:   %s\n", ev.TwilightEnd.Format("15:04:05"))
	fmt.Printf("day length:     %s\n", ev.DayLength.Round(time.Second))
	fmt.Printf("captures:")
	for _, t := range ev.Sequence {
		fmt.Printf(" %s", t.Format("15:04"))
	}
	fmt.Println()
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print today's schedule and exit")

	flag.Parse()

	return cfg
}
