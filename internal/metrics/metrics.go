// Package metrics exposes the Prometheus series the matching engine emits:
// round/offer counters, ALNS iteration counts, and distance-cache hit
// ratio.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchingRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_matching_rounds_total",
		Help: "Total number of matching rounds run across all cycles.",
	})

	MatchingCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_matching_cycle_duration_seconds",
		Help:    "Wall-clock duration of one runCycle call.",
		Buckets: prometheus.DefBuckets,
	})

	OffersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_created_total",
		Help: "Total number of Offered assignments created.",
	})

	OfferOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offer_outcomes_total",
		Help: "Offer resolutions by outcome (accepted, rejected, expired).",
	}, []string{"outcome"})

	ALNSIterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_alns_iterations_total",
		Help: "Total number of ALNS destroy/repair iterations run.",
	})

	DraftCandidatesFeasible = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_draft_candidates_total",
		Help: "Draft Orchestrator candidates generated, by feasibility.",
	}, []string{"feasible"})

	DistanceCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_distance_cache_lookups_total",
		Help: "Distance Oracle cache lookups, by hit/miss.",
	}, []string{"result"})

	ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_provider_call_duration_seconds",
		Help:    "Distance-provider call duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	PendingOrdersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_pending_orders",
		Help: "Orders currently in Pending status, sampled at the end of a matching cycle.",
	})
)

// RecordProviderCall observes one distance-provider call's latency.
func RecordProviderCall(operation string, d time.Duration) {
	ProviderCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordCacheLookup records a distance-cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DistanceCacheLookups.WithLabelValues(result).Inc()
}

// RecordOfferOutcome records one resolved offer by its terminal outcome.
func RecordOfferOutcome(outcome string) {
	OfferOutcomesTotal.WithLabelValues(outcome).Inc()
}
