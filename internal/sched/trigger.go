package sched

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind separates triggers that fire once from the recurring rebuild.
type Kind int

const (
	// OneShot triggers are removed after their action completes,
	// successfully or not.
	OneShot Kind = iota

	// Recurring triggers re-arm from their cron schedule after firing.
	Recurring
)

func (k Kind) String() string {
	if k == Recurring {
		return "recurring"
	}
	return "one-shot"
}

// Action is a trigger's effect. Errors are logged by the timetable and do
// not affect other triggers; actions are expected to bound their own
// blocking calls.
type Action func(ctx context.Context) error

// Trigger is a named fire time bound to an action. One-shots hold a fixed
// instant; recurring triggers recompute the next instant from their cron
// schedule each time they fire.
type Trigger struct {
	Name   string
	Kind   Kind
	At     time.Time
	Action Action

	schedule cron.Schedule
}

// TriggerInfo is the read-only view exposed by Snapshot.
type TriggerInfo struct {
	Name string    `json:"name"`
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}
