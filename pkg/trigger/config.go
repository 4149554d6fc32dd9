// Package trigger implements the periodic multi-tenant scanner (§4.G): for
// every active tenant it queries the store for records matching each
// TriggerType's condition, resolves priority tie-breaks, opportunistically
// feeds the State Engine, and forwards surviving candidates to the
// Suggestion Gate.
package trigger

import "github.com/codeready-toolchain/care-orchestrator/pkg/care"

// Config bounds one scan cycle.
type Config struct {
	WorkerCount       int // max tenants scanned concurrently, process-wide
	BatchCapPerTenant int // max triggers forwarded per tenant per cycle (default 50)
}

// DefaultConfig returns the spec defaults.
func DefaultConfig() Config {
	return Config{WorkerCount: 4, BatchCapPerTenant: 50}
}

// defaultPriority assigns each TriggerType a TriggerPriority for the tie-break
// rule in §4.G. Not specified exactly by the condition table; chosen by
// severity of the underlying business condition.
var defaultPriority = map[care.TriggerType]care.TriggerPriority{
	care.TriggerTypeAccountRisk:     care.TriggerPriorityCritical,
	care.TriggerTypeDealDecay:       care.TriggerPriorityHigh,
	care.TriggerTypeDealRegression:  care.TriggerPriorityHigh,
	care.TriggerTypeOpportunityHot:  care.TriggerPriorityHigh,
	care.TriggerTypeLeadStagnant:    care.TriggerPriorityNormal,
	care.TriggerTypeContactInactive: care.TriggerPriorityNormal,
	care.TriggerTypeActivityOverdue: care.TriggerPriorityNormal,
	care.TriggerTypeFollowupNeeded:  care.TriggerPriorityLow,
}

// allTriggerTypes is the fixed scan order for one tenant's cycle.
var allTriggerTypes = []care.TriggerType{
	care.TriggerTypeAccountRisk,
	care.TriggerTypeDealDecay,
	care.TriggerTypeDealRegression,
	care.TriggerTypeOpportunityHot,
	care.TriggerTypeLeadStagnant,
	care.TriggerTypeContactInactive,
	care.TriggerTypeActivityOverdue,
	care.TriggerTypeFollowupNeeded,
}

func priorityFor(t care.TriggerType) care.TriggerPriority {
	if p, ok := defaultPriority[t]; ok {
		return p
	}
	return care.TriggerPriorityNormal
}
