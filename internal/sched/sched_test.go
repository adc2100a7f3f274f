package sched

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock is a settable wall clock for driving step() directly.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

// advance walks the clock from its current value to end in fixed
// increments, stepping the timetable at each instant.
func advance(ctx context.Context, t *Timetable, c *fakeClock, end time.Time, inc time.Duration) {
	for c.t.Before(end) {
		c.t = c.t.Add(inc)
		t.step(ctx, c.t)
	}
}

func newTestTimetable(t *testing.T, start time.Time) (*Timetable, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: start}
	return New(start.Location(), WithClock(clk.Now)), clk
}

func TestOneShotFiresExactlyOnce(t *testing.T) {
	start := time.Date(2021, time.September, 3, 1, 0, 0, 0, time.UTC)
	tt, clk := newTestTimetable(t, start)

	fired := 0
	if !tt.AddOnce("sunrise", start.Add(time.Hour), func(context.Context) error {
		fired++
		return nil
	}) {
		t.Fatal("future trigger not armed")
	}

	advance(context.Background(), tt, clk, start.Add(48*time.Hour), time.Minute)

	if fired != 1 {
		t.Errorf("one-shot fired %d times, want 1", fired)
	}
	if n := len(tt.Snapshot()); n != 0 {
		t.Errorf("%d triggers still armed after firing", n)
	}
}

func TestAddOncePastDueSkipped(t *testing.T) {
	start := time.Date(2021, time.September, 3, 12, 0, 0, 0, time.UTC)
	tt, _ := newTestTimetable(t, start)

	if tt.AddOnce("sunrise", start.Add(-time.Hour), nil) {
		t.Error("past-due trigger was armed")
	}
	if tt.AddOnce("now", start, nil) {
		t.Error("trigger at the current instant was armed")
	}
	if n := len(tt.Snapshot()); n != 0 {
		t.Errorf("%d triggers armed, want 0", n)
	}
}

func TestAddOnceReplacesByName(t *testing.T) {
	start := time.Date(2021, time.September, 3, 1, 0, 0, 0, time.UTC)
	tt, _ := newTestTimetable(t, start)

	tt.AddOnce("sunset", start.Add(time.Hour), nil)
	tt.AddOnce("sunset", start.Add(2*time.Hour), nil)

	snap := tt.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("%d triggers armed, want 1", len(snap))
	}
	if !snap[0].At.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("kept fire time %v, want the replacement", snap[0].At)
	}
}

func TestRecurringRearms(t *testing.T) {
	start := time.Date(2021, time.September, 3, 0, 0, 0, 0, time.UTC)
	tt, clk := newTestTimetable(t, start)

	fired := 0
	if err := tt.AddRecurring("rebuild", "15 3 * * *", func(context.Context) error {
		fired++
		return nil
	}); err != nil {
		t.Fatalf("AddRecurring: %v", err)
	}

	advance(context.Background(), tt, clk, start.Add(48*time.Hour), time.Minute)

	if fired != 2 {
		t.Errorf("recurring fired %d times over two days, want 2", fired)
	}
	snap := tt.Snapshot()
	if len(snap) != 1 || snap[0].Kind != "recurring" {
		t.Fatalf("unexpected snapshot after run: %+v", snap)
	}
	if !snap[0].At.After(clk.Now()) {
		t.Errorf("recurring not re-armed into the future: %v", snap[0].At)
	}
}

func TestAddRecurringBadSpec(t *testing.T) {
	tt, _ := newTestTimetable(t, time.Now())
	if err := tt.AddRecurring("rebuild", "not a cron spec", nil); err == nil {
		t.Error("bad cron spec accepted")
	}
}

func TestClearOneShotsKeepsRecurring(t *testing.T) {
	start := time.Date(2021, time.September, 3, 1, 0, 0, 0, time.UTC)
	tt, _ := newTestTimetable(t, start)

	tt.AddOnce("a", start.Add(time.Hour), nil)
	tt.AddOnce("b", start.Add(2*time.Hour), nil)
	if err := tt.AddRecurring("rebuild", "15 3 * * *", nil); err != nil {
		t.Fatal(err)
	}

	if removed := tt.ClearOneShots(); removed != 2 {
		t.Errorf("removed %d, want 2", removed)
	}
	snap := tt.Snapshot()
	if len(snap) != 1 || snap[0].Name != "rebuild" {
		t.Errorf("snapshot after clear: %+v", snap)
	}
}

func TestFailingActionDoesNotAffectSiblings(t *testing.T) {
	start := time.Date(2021, time.September, 3, 1, 0, 0, 0, time.UTC)
	tt, clk := newTestTimetable(t, start)

	var order []string
	tt.AddOnce("bad", start.Add(10*time.Minute), func(context.Context) error {
		order = append(order, "bad")
		return errors.New("network down")
	})
	tt.AddOnce("good", start.Add(20*time.Minute), func(context.Context) error {
		order = append(order, "good")
		return nil
	})
	tt.AddOnce("panicky", start.Add(30*time.Minute), func(context.Context) error {
		order = append(order, "panicky")
		panic("boom")
	})
	tt.AddOnce("last", start.Add(40*time.Minute), func(context.Context) error {
		order = append(order, "last")
		return nil
	})

	advance(context.Background(), tt, clk, start.Add(time.Hour), time.Minute)

	want := []string{"bad", "good", "panicky", "last"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
}

func TestSameTickFiresInFireTimeOrder(t *testing.T) {
	start := time.Date(2021, time.September, 3, 1, 0, 0, 0, time.UTC)
	tt, clk := newTestTimetable(t, start)

	var order []string
	record := func(name string) Action {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	// Armed out of order; both become due within one coarse step.
	tt.AddOnce("second", start.Add(40*time.Minute), record("second"))
	tt.AddOnce("first", start.Add(10*time.Minute), record("first"))

	clk.t = start.Add(time.Hour)
	tt.step(context.Background(), clk.t)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("fired %v, want [first second]", order)
	}
}

func TestRebuildClearsPendingDueTriggers(t *testing.T) {
	start := time.Date(2021, time.September, 3, 3, 0, 0, 0, time.UTC)
	tt, clk := newTestTimetable(t, start)

	var fired []string
	tt.AddOnce("stale", start.Add(20*time.Minute), func(context.Context) error {
		fired = append(fired, "stale")
		return nil
	})
	if err := tt.AddRecurring("rebuild", "15 3 * * *", func(context.Context) error {
		fired = append(fired, "rebuild")
		tt.ClearOneShots()
		tt.AddOnce("fresh", clk.Now().Add(time.Hour), func(context.Context) error {
			fired = append(fired, "fresh")
			return nil
		})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	// One coarse step past both fire times: the rebuild (03:15) sorts
	// before the stale one-shot (03:20) and clears it before it fires.
	clk.t = start.Add(30 * time.Minute)
	tt.step(context.Background(), clk.t)

	advance(context.Background(), tt, clk, start.Add(3*time.Hour), time.Minute)

	want := []string{"rebuild", "fresh"}
	if len(fired) != len(want) {
		t.Fatalf("fired %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired %v, want %v", fired, want)
		}
	}
}

func TestDoRunsOnLoop(t *testing.T) {
	start := time.Date(2021, time.September, 3, 1, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	tt := New(time.UTC, WithClock(clk.Now), WithTick(time.Millisecond))

	done := make(chan struct{})
	tt.Do(func(context.Context) { close(done) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tt.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued request never ran")
	}
}
