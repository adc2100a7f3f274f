// Package sched is the process-wide timetable: a poll loop that fires
// named triggers at local wall-clock times, removes one-shots after they
// run, and lets a recurring trigger clear and repopulate the set once a
// day. Actions run synchronously, one at a time, in fire-time order.
package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sunbot/internal/log"
	"sunbot/internal/metrics"
)

const defaultTick = time.Second

// Timetable holds the active triggers. All mutation happens on the Run
// goroutine (or before Run starts); external callers hand work to the loop
// via Do.
type Timetable struct {
	loc  *time.Location
	now  func() time.Time
	tick time.Duration

	mu       sync.Mutex
	triggers []*Trigger

	reqs chan func(context.Context)
}

// Option tweaks a Timetable; used by tests to inject a clock.
type Option func(*Timetable)

// WithClock replaces the wall-clock source.
func WithClock(now func() time.Time) Option {
	return func(t *Timetable) { t.now = now }
}

// WithTick overrides the poll interval.
func WithTick(d time.Duration) Option {
	return func(t *Timetable) { t.tick = d }
}

// New creates an empty timetable whose wall clock runs in loc.
func New(loc *time.Location, opts ...Option) *Timetable {
	if loc == nil {
		loc = time.Local
	}
	t := &Timetable{
		loc:  loc,
		now:  time.Now,
		tick: defaultTick,
		reqs: make(chan func(context.Context), 8),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// AddOnce installs (or replaces, by name) a one-shot trigger. Fire times
// already in the past are skipped silently: firing a stale action out of
// order is worse than missing it, and the daily rebuild covers the rest.
// Reports whether the trigger was armed.
func (t *Timetable) AddOnce(name string, at time.Time, a Action) bool {
	at = at.In(t.loc)
	if !at.After(t.now().In(t.loc)) {
		log.Debug("skipping past-due trigger", "name", name, "at", at.Format("15:04"))
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(name)
	t.triggers = append(t.triggers, &Trigger{Name: name, Kind: OneShot, At: at, Action: a})
	return true
}

// AddRecurring installs (or replaces, by name) a recurring trigger from a
// standard 5-field cron spec evaluated in the timetable's zone.
func (t *Timetable) AddRecurring(name, spec string, a Action) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("sched: bad spec %q for %s: %w", spec, name, err)
	}
	next := schedule.Next(t.now().In(t.loc))
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(name)
	t.triggers = append(t.triggers, &Trigger{
		Name:     name,
		Kind:     Recurring,
		At:       next,
		Action:   a,
		schedule: schedule,
	})
	return nil
}

// ClearOneShots drops every one-shot trigger, leaving recurring ones
// armed. The rebuild action calls this before installing the new day.
func (t *Timetable) ClearOneShots() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.triggers[:0]
	removed := 0
	for _, tr := range t.triggers {
		if tr.Kind == Recurring {
			kept = append(kept, tr)
		} else {
			removed++
		}
	}
	t.triggers = kept
	return removed
}

// Remove drops the trigger with the given name, if present.
func (t *Timetable) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(name)
}

func (t *Timetable) removeLocked(name string) bool {
	for i, tr := range t.triggers {
		if tr.Name == name {
			t.triggers = append(t.triggers[:i], t.triggers[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns the armed triggers sorted by fire time. Safe to call
// from other goroutines (the status API).
func (t *Timetable) Snapshot() []TriggerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TriggerInfo, 0, len(t.triggers))
	for _, tr := range t.triggers {
		out = append(out, TriggerInfo{Name: tr.Name, Kind: tr.Kind.String(), At: tr.At})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Do hands fn to the run loop, which executes it between ticks. Used for
// work that must mutate the timetable from outside (config reload).
func (t *Timetable) Do(fn func(context.Context)) {
	select {
	case t.reqs <- fn:
	default:
		log.Warn("timetable request queue full; dropping request")
	}
}

// Run polls until ctx is canceled. Due actions execute synchronously in
// ascending fire-time order; a slow action delays later ones in the same
// tick, which the minute-granularity domain tolerates.
func (t *Timetable) Run(ctx context.Context) error {
	log.Info("timetable running", "tz", t.loc.String(), "tick", t.tick.String())
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-t.reqs:
			fn(ctx)
		case <-ticker.C:
			t.step(ctx, t.now().In(t.loc))
		}
	}
}

// step fires every trigger due at now. Exposed to tests, which drive it
// with a scripted clock instead of the ticker.
func (t *Timetable) step(ctx context.Context, now time.Time) {
	t.mu.Lock()
	due := make([]*Trigger, 0, 2)
	for _, tr := range t.triggers {
		if !tr.At.After(now) {
			due = append(due, tr)
		}
	}
	t.mu.Unlock()
	if len(due) == 0 {
		return
	}
	sort.Slice(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })

	for _, tr := range due {
		// A trigger fired earlier in this tick may have cleared this one
		// (the rebuild does exactly that); never fire a removed trigger.
		if !t.contains(tr) {
			continue
		}
		t.fire(ctx, tr)

		t.mu.Lock()
		if tr.Kind == Recurring {
			tr.At = tr.schedule.Next(t.now().In(t.loc))
		} else {
			t.removeLocked(tr.Name)
		}
		t.mu.Unlock()
	}
}

func (t *Timetable) contains(tr *Trigger) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cur := range t.triggers {
		if cur == tr {
			return true
		}
	}
	return false
}

// fire runs one action to completion, isolating failures and panics so a
// bad day's network call can never take down the loop.
func (t *Timetable) fire(ctx context.Context, tr *Trigger) {
	started := t.now()
	defer func() {
		if r := recover(); r != nil {
			metrics.ActionFailed(tr.Name)
			log.Error("trigger panicked", fmt.Errorf("panic: %v", r),
				"name", tr.Name, "stack", string(debug.Stack()))
		}
	}()

	log.Info("trigger firing", "name", tr.Name, "kind", tr.Kind.String(),
		"at", tr.At.In(t.loc).Format("15:04"))
	err := tr.Action(ctx)
	took := t.now().Sub(started)
	metrics.TriggerFired(tr.Name)
	if err != nil {
		metrics.ActionFailed(tr.Name)
		log.Error("trigger action failed", err, "name", tr.Name,
			"local_time", t.now().In(t.loc).Format("15:04:05"), "took", took.String())
		return
	}
	log.Debug("trigger done", "name", tr.Name, "took", took.String())
}
