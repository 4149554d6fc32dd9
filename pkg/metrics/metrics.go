// Package metrics exposes the orchestrator's Prometheus metrics surface
// (§11): the teacher has no metrics package, but a service running a
// background worker pool and outbound HTTP fanout warrants one, the way
// jordigilh-kubernaut's stack (client_golang) signals for this kind of
// repo.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metric the orchestrator emits, constructed once at
// startup against a single prometheus.Registerer.
type Registry struct {
	TriggerScanCycles      *prometheus.CounterVec
	TriggerCandidatesFound *prometheus.CounterVec
	SuggestionOutcomes     *prometheus.CounterVec
	WebhookDeliveries      *prometheus.CounterVec
	WebhookLatency         *prometheus.HistogramVec
	BudgetActionsTaken     *prometheus.CounterVec
	TenantConfigCacheHits  prometheus.Counter
	TenantConfigCacheMiss  prometheus.Counter
}

// NewRegistry registers and returns the full metric set against reg. Tests
// and cmd/care-orchestrator both pass a dedicated prometheus.NewRegistry();
// main also serves that registry on the admin surface's /metrics.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TriggerScanCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "care",
			Subsystem: "trigger",
			Name:      "scan_cycles_total",
			Help:      "Completed trigger-worker scan cycles, labeled by outcome.",
		}, []string{"outcome"}),

		TriggerCandidatesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "care",
			Subsystem: "trigger",
			Name:      "candidates_found_total",
			Help:      "Trigger candidates surfaced per scan, labeled by trigger type.",
		}, []string{"trigger_type"}),

		SuggestionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "care",
			Subsystem: "suggestion",
			Name:      "outcomes_total",
			Help:      "createSuggestionIfNew invocations, labeled by outcome_type.",
		}, []string{"outcome_type"}),

		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "care",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook trigger deliveries, labeled by result.",
		}, []string{"result"}),

		WebhookLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "care",
			Subsystem: "webhook",
			Name:      "delivery_duration_seconds",
			Help:      "Webhook delivery latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),

		BudgetActionsTaken: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "care",
			Subsystem: "budget",
			Name:      "actions_taken_total",
			Help:      "Budget-enforcement actions applied to an LLM call, labeled by action kind.",
		}, []string{"action"}),

		TenantConfigCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "care",
			Subsystem: "tenantconfig",
			Name:      "cache_hits_total",
			Help:      "Tenant config cache hits.",
		}),

		TenantConfigCacheMiss: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "care",
			Subsystem: "tenantconfig",
			Name:      "cache_misses_total",
			Help:      "Tenant config cache misses (store load or fallback to environment).",
		}),
	}
}
