package bot

import (
	"context"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"sunbot/internal/capture"
	"sunbot/internal/colors"
	"sunbot/internal/config"
	"sunbot/internal/publish"
	"sunbot/internal/sched"
)

// pubStub records published messages and hands out sequential ids.
type pubStub struct {
	mu   sync.Mutex
	msgs []publish.Message
}

func (p *pubStub) Publish(_ context.Context, m publish.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
	return len(p.msgs), nil
}

func (p *pubStub) sent() []publish.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publish.Message(nil), p.msgs...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// newTestBot builds a bot over the default site with every external edge
// stubbed out: captures succeed without chromium, palettes are canned, and
// no animation runs ffmpeg.
func newTestBot(t *testing.T, start time.Time) (*Bot, *sched.Timetable, *pubStub, *fakeClock) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Capture.OutputDir = t.TempDir()
	cfg.Capture.URL = "http://camera.invalid/"

	clk := &fakeClock{t: start}
	tt := sched.New(start.Location(), sched.WithClock(clk.Now))
	pub := &pubStub{}

	b, err := New(cfg, tt, pub, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.now = clk.Now
	b.captureFn = func(context.Context, capture.Options) error { return nil }
	b.extractFn = func(string) (*colors.Palette, error) {
		return &colors.Palette{
			Dominant: color.NRGBA{R: 0xff, A: 0xff},
			Average:  color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff},
			Ordered:  []color.NRGBA{{R: 0xff, A: 0xff}, {B: 0xff, A: 0xff}},
		}, nil
	}
	b.animateFn = func(_ context.Context, _, dir, name string, _ int, _ time.Duration) (string, error) {
		return dir + "/" + name, nil
	}
	return b, tt, pub, clk
}

func siteTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatal(err)
	}
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

func triggerNames(tt *sched.Timetable) map[string]bool {
	names := make(map[string]bool)
	for _, tr := range tt.Snapshot() {
		names[tr.Name] = true
	}
	return names
}

func TestStartArmsFullDay(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 1, 0)
	b, tt, _, _ := newTestBot(t, start)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	today := b.Today()
	if today == nil {
		t.Fatal("no day computed")
	}
	if got := today.Date.Format("2006-01-02"); got != "2021-09-03" {
		t.Errorf("day date %s", got)
	}

	names := triggerNames(tt)
	for _, want := range []string{"rebuild", "twilight-start", "sunrise", "sunset", "twilight-end", "nightly"} {
		if !names[want] {
			t.Errorf("trigger %q not armed; have %v", want, names)
		}
	}

	// One trigger per sequence entry, plus nightly and the recurring rebuild.
	if got, want := len(tt.Snapshot()), len(today.Sequence)+2; got != want {
		t.Errorf("%d triggers armed, want %d", got, want)
	}
	for _, tr := range tt.Snapshot() {
		if !tr.At.After(start) {
			t.Errorf("trigger %q armed in the past: %v", tr.Name, tr.At)
		}
	}
}

func TestBuildDayMidDaySkipsPastEvents(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 14, 0)
	b, tt, _, _ := newTestBot(t, start)

	if err := b.BuildDay(context.Background()); err != nil {
		t.Fatalf("BuildDay: %v", err)
	}

	names := triggerNames(tt)
	for _, gone := range []string{"twilight-start", "sunrise"} {
		if names[gone] {
			t.Errorf("morning trigger %q armed at 14:00", gone)
		}
	}
	for _, want := range []string{"sunset", "twilight-end", "nightly"} {
		if !names[want] {
			t.Errorf("evening trigger %q missing; have %v", want, names)
		}
	}
}

func TestBuildDayIsIdempotent(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 1, 0)
	b, tt, _, _ := newTestBot(t, start)

	ctx := context.Background()
	if err := b.BuildDay(ctx); err != nil {
		t.Fatal(err)
	}
	first := len(tt.Snapshot())
	if err := b.BuildDay(ctx); err != nil {
		t.Fatal(err)
	}
	if second := len(tt.Snapshot()); second != first {
		t.Errorf("second build armed %d triggers, first armed %d", second, first)
	}
}

func TestBuildDayFailureKeepsSchedule(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 1, 0)
	b, tt, _, clk := newTestBot(t, start)

	ctx := context.Background()
	if err := b.BuildDay(ctx); err != nil {
		t.Fatal(err)
	}
	before := len(tt.Snapshot())

	// A near-polar site in December has no sunrise; the rebuild must fail
	// without touching the armed day.
	bad := config.DefaultConfig()
	bad.Site.Latitude = "89.9"
	bad.Site.Longitude = "0"
	bad.Site.Timezone = "UTC"
	if err := b.SetConfig(bad); err != nil {
		t.Fatal(err)
	}
	clk.Set(time.Date(2021, time.December, 21, 1, 0, 0, 0, time.UTC))

	if err := b.BuildDay(ctx); err == nil {
		t.Fatal("polar-night build succeeded")
	}
	if after := len(tt.Snapshot()); after != before {
		t.Errorf("failed build changed trigger count: %d -> %d", before, after)
	}
	if got := b.Today().Date.Format("2006-01-02"); got != "2021-09-03" {
		t.Errorf("failed build replaced today: %s", got)
	}
}

func TestSunriseActionPostsTrendReply(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 6, 0)
	b, _, pub, _ := newTestBot(t, start)

	ctx := context.Background()
	if err := b.BuildDay(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.sunriseAction(ctx); err != nil {
		t.Fatalf("sunriseAction: %v", err)
	}

	msgs := pub.sent()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want photo + trend reply", len(msgs))
	}
	if msgs[0].ImagePath == "" || !strings.Contains(msgs[0].Text, "Sunrise in Grand Forks") {
		t.Errorf("sunrise post: %+v", msgs[0])
	}
	if msgs[1].ReplyTo != 1 {
		t.Errorf("trend reply threaded to %d, want 1", msgs[1].ReplyTo)
	}
	if !strings.Contains(msgs[1].Text, "getting shorter") {
		t.Errorf("September trend text: %q", msgs[1].Text)
	}
}

func TestSunsetActionDelta(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 19, 0)
	b, _, pub, _ := newTestBot(t, start)

	ctx := context.Background()
	if err := b.BuildDay(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.sunsetAction(ctx); err != nil {
		t.Fatalf("sunsetAction: %v", err)
	}

	msgs := pub.sent()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "Sunset in Grand Forks") ||
		!strings.Contains(msgs[0].Text, "shorter") {
		t.Errorf("September sunset text: %q", msgs[0].Text)
	}
}

func TestTwilightEndActionPostsPalette(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 20, 30)
	b, _, pub, _ := newTestBot(t, start)

	ctx := context.Background()
	if err := b.BuildDay(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.twilightEndAction(ctx); err != nil {
		t.Fatalf("twilightEndAction: %v", err)
	}

	msgs := pub.sent()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want photo + palette", len(msgs))
	}
	if !strings.Contains(msgs[1].Text, "#ff0000") || !strings.Contains(msgs[1].Text, "#0000ff") {
		t.Errorf("palette text: %q", msgs[1].Text)
	}
}

func TestNightlyActionPostsVideoPerAnimation(t *testing.T) {
	start := siteTime(t, 2021, time.September, 3, 23, 0)
	b, _, pub, _ := newTestBot(t, start)

	if err := b.nightlyAction(context.Background()); err != nil {
		t.Fatalf("nightlyAction: %v", err)
	}

	msgs := pub.sent()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].VideoPath == "" || !strings.Contains(msgs[0].Text, "aurora forecast") {
		t.Errorf("nightly post: %+v", msgs[0])
	}
}

func TestTimeOfDay(t *testing.T) {
	day := siteTime(t, 2021, time.September, 3, 0, 0)

	got, err := timeOfDay("23:00", day)
	if err != nil {
		t.Fatalf("timeOfDay: %v", err)
	}
	want := siteTime(t, 2021, time.September, 3, 23, 0)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	for _, bad := range []string{"", "23", "24:00", "12:60", "ab:cd", "1:2:3"} {
		if _, err := timeOfDay(bad, day); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}
