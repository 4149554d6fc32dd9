package suggestion

import (
	"sync"

	"github.com/codeready-toolchain/care-orchestrator/pkg/budget"
)

// EffectKind classifies what a tool does when dispatched, independent of
// its name — used by the policy gate to decide whether a suggested action
// needs human approval before it is applied.
type EffectKind string

const (
	EffectKindCRMWrite EffectKind = "crm_write"
	EffectKindNotify   EffectKind = "notify"
	EffectKindEscalate EffectKind = "escalate"
)

// ToolDefinition is a registry entry: name, JSON schema for its arguments,
// and effect kind. It is the typed handler value the gate's tool registry
// maps tool-name strings to, rather than dispatching on the string itself.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Effect      EffectKind
}

// ToolRegistry is the tool-registry snapshot (§6): built once on first use
// per process and read-only thereafter.
type ToolRegistry struct {
	once   sync.Once
	defs   []ToolDefinition
	byName map[string]ToolDefinition
}

// NewToolRegistry builds a registry from defs. The snapshot is taken
// immediately; there is nothing to lazily initialize beyond the index.
func NewToolRegistry(defs ...ToolDefinition) *ToolRegistry {
	r := &ToolRegistry{defs: defs}
	r.index()
	return r
}

func (r *ToolRegistry) index() {
	r.once.Do(func() {
		r.byName = make(map[string]ToolDefinition, len(r.defs))
		for _, d := range r.defs {
			r.byName[d.Name] = d
		}
	})
}

// Get looks up a tool definition by name.
func (r *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	r.index()
	d, ok := r.byName[name]
	return d, ok
}

// All returns every registered tool definition.
func (r *ToolRegistry) All() []ToolDefinition {
	return append([]ToolDefinition(nil), r.defs...)
}

// ToBudgetTools converts the registry snapshot to the budget package's Tool
// shape, for passing to an LLM provider's Generate call under a token cap.
func (r *ToolRegistry) ToBudgetTools() []budget.Tool {
	tools := make([]budget.Tool, 0, len(r.defs))
	for _, d := range r.defs {
		tools = append(tools, budget.Tool{Name: d.Name, Schema: d.InputSchema})
	}
	return tools
}

// DefaultCRMTools is the built-in tool set the orchestrator ships with,
// covering the action surface implied by §3's EntityType/TriggerType
// combinations: per-lead, per-contact, per-opportunity, and per-account
// CRM writes, plus notification and escalation actions.
func DefaultCRMTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "update_lead",
			Description: "Update a lead record's status or owner.",
			Effect:      EffectKindCRMWrite,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{"type": "string"},
					"owner":  map[string]any{"type": "string"},
				},
			},
		},
		{
			Name:        "send_followup_email",
			Description: "Send a templated follow-up email to a contact.",
			Effect:      EffectKindNotify,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"template_id": map[string]any{"type": "string"},
				},
				"required": []any{"template_id"},
			},
		},
		{
			Name:        "schedule_call",
			Description: "Schedule a follow-up call with a contact or lead owner.",
			Effect:      EffectKindCRMWrite,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"when": map[string]any{"type": "string"},
				},
				"required": []any{"when"},
			},
		},
		{
			Name:        "update_opportunity",
			Description: "Update an opportunity's stage or close date.",
			Effect:      EffectKindCRMWrite,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"stage":      map[string]any{"type": "string"},
					"close_date": map[string]any{"type": "string"},
				},
			},
		},
		{
			Name:        "log_activity",
			Description: "Log a CRM activity note against a record.",
			Effect:      EffectKindCRMWrite,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"note": map[string]any{"type": "string"},
				},
				"required": []any{"note"},
			},
		},
		{
			Name:        "escalate_to_manager",
			Description: "Escalate an at-risk account to its account manager.",
			Effect:      EffectKindEscalate,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{"type": "string"},
				},
				"required": []any{"reason"},
			},
		},
	}
}
