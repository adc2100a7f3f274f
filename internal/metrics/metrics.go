package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	triggersFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "triggers_fired_total",
			Subsystem: "sunbot",
			Help:      "Triggers dispatched by the timetable, by trigger name.",
		},
		[]string{"name"},
	)

	actionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "action_failures_total",
			Subsystem: "sunbot",
			Help:      "Trigger actions that returned an error or panicked.",
		},
		[]string{"name"},
	)

	captures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "captures_total",
			Subsystem: "sunbot",
			Help:      "Camera captures by outcome.",
		},
		[]string{"outcome"},
	)

	rebuilds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "schedule_rebuilds_total",
			Subsystem: "sunbot",
			Help:      "Daily timetable rebuilds completed.",
		},
	)

	posts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "posts_total",
			Subsystem: "sunbot",
			Help:      "Published messages by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		triggersFired,
		actionFailures,
		captures,
		rebuilds,
		posts,
	)
}

func TriggerFired(name string) {
	triggersFired.With(prometheus.Labels{"name": name}).Inc()
}

func ActionFailed(name string) {
	actionFailures.With(prometheus.Labels{"name": name}).Inc()
}

func CaptureDone(ok bool) {
	captures.With(prometheus.Labels{"outcome": outcome(ok)}).Inc()
}

func RebuildDone() {
	rebuilds.Inc()
}

func PostDone(ok bool) {
	posts.With(prometheus.Labels{"outcome": outcome(ok)}).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
