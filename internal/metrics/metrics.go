// Package metrics exposes the prometheus instruments for the posting
// pipeline, served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventsPosted counts successfully posted events by kind and ledger shape.
var EventsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bookkeeper",
	Name:      "events_posted_total",
	Help:      "Events posted to a ledger, by event kind and ledger shape.",
}, []string{"kind", "shape"})

// EventsSkipped counts rows that produced no posting, by reason class.
var EventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bookkeeper",
	Name:      "events_skipped_total",
	Help:      "Intake rows skipped without posting (unknown shape, stale, duplicate).",
}, []string{"reason"})

// PostErrors counts pipeline-fatal posting failures.
var PostErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bookkeeper",
	Name:      "post_errors_total",
	Help:      "Events whose ledger append failed and were marked ERROR.",
})

// UnresolvedReferences counts ledger references routed to the default ledger
// as a fallback.
var UnresolvedReferences = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bookkeeper",
	Name:      "unresolved_references_total",
	Help:      "Ledger references that matched no known ledger and fell back to the default.",
})

// SideEffectFailures counts best-effort post-commit actions that failed.
var SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bookkeeper",
	Name:      "side_effect_failures_total",
	Help:      "Post-commit side effects that failed (posted rows stand).",
}, []string{"effect"})

// SweepDuration observes full-sweep wall time.
var SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "bookkeeper",
	Name:      "sweep_duration_seconds",
	Help:      "Duration of periodic intake sweeps.",
	Buckets:   prometheus.DefBuckets,
})
