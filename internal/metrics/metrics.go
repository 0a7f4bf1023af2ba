package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline-wide counters. Consent denials and dedupe hits are metrics by
// contract: from the requester's perspective they are not errors.
var (
	EventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_events_accepted_total",
		Help: "Events accepted by the ingestion gateway.",
	})

	EventsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_events_deduplicated_total",
		Help: "Events dropped as duplicates within the dedupe window.",
	})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_events_rejected_total",
		Help: "Events rejected at validation, by reason.",
	}, []string{"reason"})

	EventsShed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_events_shed_total",
		Help: "Events shed under backpressure.",
	})

	ConsentDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_consent_denied_total",
		Help: "Processing vetoed by the consent gate, by category.",
	}, []string{"category"})

	ProfileUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_profile_updates_total",
		Help: "Profile mutations applied by the aggregator.",
	})

	TriggersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_triggers_fired_total",
		Help: "Trigger jobs scheduled, by trigger name.",
	}, []string{"trigger"})

	TriggersCapped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_triggers_frequency_capped_total",
		Help: "Trigger matches skipped by the frequency cap, by trigger name.",
	}, []string{"trigger"})

	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_dead_letters_total",
		Help: "Records dead-lettered after retry exhaustion, by source stage.",
	}, []string{"source"})

	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_broadcast_dropped_total",
		Help: "Stream updates dropped on slow subscribers (drop-oldest).",
	})

	ScoreFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_score_fallbacks_total",
		Help: "Scoring results discarded for violating bounds; last known-good kept.",
	})
)
