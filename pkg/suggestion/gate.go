// Package suggestion implements the Suggestion Gate (§4.H): the single
// entry point that turns a trigger into a stored, audited suggestion, or
// one of the other exhaustive outcomes defined by the spec.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/budget"
	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/metrics"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store"
)

// ErrUnknownTool indicates the generator named a tool absent from the
// gate's registry snapshot. This is one of the Fatal outcomes (§9): the
// task aborts, the worker loop continues. Check with errors.Is.
var ErrUnknownTool = errors.New("suggestion: tool not found in registry")

// UnknownToolError wraps ErrUnknownTool with the offending tool name.
type UnknownToolError struct {
	ToolName string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("suggestion: unknown tool %q", e.ToolName)
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// defaultConfidence and defaultPriority are applied when the generator
// leaves them unset (§4.H.3).
const defaultConfidence = 0.75

const defaultPriority = care.TriggerPriorityNormal

// defaultCooldown is how long a rejected suggestion suppresses a new one for
// the same (tenant, trigger, record) before a fresh suggestion is allowed.
const defaultCooldown = 24 * time.Hour

// Store is the subset of store.Store the gate needs.
type Store interface {
	QuerySuggestions(ctx context.Context, filter store.QuerySuggestionsFilter) ([]care.Suggestion, error)
	InsertSuggestion(ctx context.Context, payload store.InsertSuggestionPayload) (uuid.UUID, error)
}

// Generator is the LLM provider's entry point as the gate needs it.
type Generator interface {
	Generate(ctx context.Context, in GenerationInput) (*GenerationOutput, error)
}

// GenerationInput is what the gate passes to the LLM provider.
type GenerationInput struct {
	TriggerData care.TriggerData
	Tools       []budget.Tool
	Caps        budget.Caps
}

// GenerationOutput is a successful LLM suggestion. A nil *GenerationOutput
// (with a nil error) means generation_failed.
type GenerationOutput struct {
	Action     care.SuggestedAction
	Confidence float64
	Reasoning  string
}

// WebhookEmitter fires a tenant-scoped, fire-and-forget internal webhook.
type WebhookEmitter interface {
	EmitTenantWebhook(ctx context.Context, tenantID uuid.UUID, eventName string, payload map[string]any) error
}

// AuditEmitter records one ACTION_OUTCOME event per gate invocation.
type AuditEmitter interface {
	EmitCareAudit(ctx context.Context, event AuditEvent) error
}

// CriticalNotifier fires a best-effort, out-of-band notification when the
// gate creates a priority=critical suggestion (§12.1). It must never block
// or fail CreateSuggestionIfNew's return value.
type CriticalNotifier interface {
	NotifyCriticalSuggestion(ctx context.Context, tenantID uuid.UUID, sug care.Suggestion)
}

// AuditEvent is the structured record emitted once per invocation of
// CreateSuggestionIfNew, regardless of outcome.
type AuditEvent struct {
	TenantID     uuid.UUID
	TriggerID    care.TriggerType
	RecordType   care.EntityType
	RecordID     uuid.UUID
	SuggestionID *uuid.UUID
	Outcome      care.OutcomeType
	Detail       string
}

// Gate implements createSuggestionIfNew.
type Gate struct {
	store    Store
	generate Generator
	webhook  WebhookEmitter
	audit    AuditEmitter
	notify   CriticalNotifier
	registry *ToolRegistry
	caps     budget.Caps
	cooldown time.Duration
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// New constructs a Gate. webhook and audit may be nil: both are nil-checked
// before use, and a nil emitter skips that emission (noop.Webhook{} and
// noop.Audit{} are also available). The tool-registry snapshot (§6) defaults to DefaultCRMTools
// and is built once here, for the lifetime of the process.
func New(st Store, generate Generator, webhook WebhookEmitter, audit AuditEmitter, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:    st,
		generate: generate,
		webhook:  webhook,
		audit:    audit,
		registry: NewToolRegistry(DefaultCRMTools()...),
		caps:     budget.DefaultCaps(),
		cooldown: defaultCooldown,
		logger:   logger,
	}
}

// WithToolRegistry overrides the default tool-registry snapshot.
func (g *Gate) WithToolRegistry(registry *ToolRegistry) *Gate {
	g.registry = registry
	return g
}

// WithCriticalNotifier attaches a best-effort notifier fired for
// priority=critical suggestions. Leaving this unset is safe; notify is
// nil-checked before use.
func (g *Gate) WithCriticalNotifier(notify CriticalNotifier) *Gate {
	g.notify = notify
	return g
}

// WithBudgetCaps overrides the default budget caps passed to the generator.
func (g *Gate) WithBudgetCaps(caps budget.Caps) *Gate {
	g.caps = caps
	return g
}

// WithMetrics attaches the Prometheus registry the gate reports
// suggestion_outcomes_total and budget_actions_taken_total against. Leaving
// this unset is safe; m is nil-checked before use.
func (g *Gate) WithMetrics(m *metrics.Registry) *Gate {
	g.metrics = m
	return g
}

// CreateSuggestionIfNew is the gate's single entry point (§4.H). It never
// panics or returns an error to the caller for anything other than a
// genuinely unrecoverable programming error (invalid trigger data); every
// runtime failure is captured as one of the six exhaustive outcomes and
// reported only via the audit emitter.
func (g *Gate) CreateSuggestionIfNew(ctx context.Context, tenantID uuid.UUID, trigger care.TriggerData) (id *uuid.UUID, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeError, "panic recovered")
			id, err = nil, nil
		}
	}()

	ref := care.EntityRef{TenantID: tenantID, EntityType: trigger.RecordType, EntityID: trigger.RecordID}

	duplicate, checkErr := g.hasActiveDuplicate(ctx, tenantID, trigger)
	if checkErr != nil {
		g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeError, checkErr.Error())
		return nil, nil
	}
	if duplicate {
		g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeDuplicateSuppressed, "cooldown: matching pending or recently-rejected suggestion exists")
		return nil, nil
	}

	applied := budget.ApplyBudgetCaps(budget.BudgetInputs{Tools: g.registry.ToBudgetTools()}, g.caps, nil)
	g.recordBudgetActions(applied.ActionsTaken)

	generated, genErr := g.generate.Generate(ctx, GenerationInput{
		TriggerData: trigger,
		Tools:       applied.Tools,
		Caps:        g.caps,
	})
	if genErr != nil {
		g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeError, genErr.Error())
		return nil, nil
	}
	if generated == nil {
		g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeGenerationFailed, "generator returned no suggestion")
		return nil, nil
	}

	if _, known := g.registry.Get(generated.Action.ToolName); !known {
		toolErr := &UnknownToolError{ToolName: generated.Action.ToolName}
		g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeError, toolErr.Error())
		return nil, nil
	}

	payload := store.InsertSuggestionPayload{
		EntityRef:  ref,
		TriggerID:  trigger.TriggerID,
		Action:     generated.Action,
		Confidence: withDefaultConfidence(generated.Confidence),
		Reasoning:  generated.Reasoning,
		Priority:   withDefaultPriority(trigger.Priority),
		Status:     care.SuggestionStatusPending,
		Outcome:    care.OutcomeSuggestionCreated,
	}

	insertedID, insertErr := g.store.InsertSuggestion(ctx, payload)
	if insertErr != nil {
		if store.IsConstraintViolation(insertErr) {
			g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeConstraintViolation, insertErr.Error())
			return nil, nil
		}
		g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeError, insertErr.Error())
		return nil, nil
	}
	if insertedID == uuid.Nil {
		g.emitAudit(ctx, tenantID, trigger, nil, care.OutcomeError, "insert succeeded but returned no id")
		return nil, nil
	}

	g.emitWebhook(ctx, tenantID, insertedID, ref, trigger)
	g.notifyCritical(ctx, tenantID, insertedID, payload)
	g.emitAudit(ctx, tenantID, trigger, &insertedID, care.OutcomeSuggestionCreated, "")
	return &insertedID, nil
}

func (g *Gate) notifyCritical(ctx context.Context, tenantID uuid.UUID, suggestionID uuid.UUID, payload store.InsertSuggestionPayload) {
	if g.notify == nil || payload.Priority != care.TriggerPriorityCritical {
		return
	}
	g.notify.NotifyCriticalSuggestion(ctx, tenantID, care.Suggestion{
		ID:         suggestionID,
		EntityRef:  payload.EntityRef,
		TriggerID:  payload.TriggerID,
		Action:     payload.Action,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
		Priority:   payload.Priority,
		Status:     payload.Status,
		Outcome:    payload.Outcome,
	})
}

// hasActiveDuplicate implements the cooldown check: an existing pending
// suggestion, or one rejected within the cooldown window, for the same
// (tenant, trigger, record).
func (g *Gate) hasActiveDuplicate(ctx context.Context, tenantID uuid.UUID, trigger care.TriggerData) (bool, error) {
	pending, err := g.store.QuerySuggestions(ctx, store.QuerySuggestionsFilter{
		TenantID:  tenantID,
		TriggerID: trigger.TriggerID,
		RecordID:  trigger.RecordID,
		Status:    care.SuggestionStatusPending,
		Limit:     1,
	})
	if err != nil {
		return false, err
	}
	if len(pending) > 0 {
		return true, nil
	}

	rejected, err := g.store.QuerySuggestions(ctx, store.QuerySuggestionsFilter{
		TenantID:  tenantID,
		TriggerID: trigger.TriggerID,
		RecordID:  trigger.RecordID,
		Status:    care.SuggestionStatusRejected,
		Limit:     1,
	})
	if err != nil {
		return false, err
	}
	if len(rejected) == 0 {
		return false, nil
	}
	return time.Since(rejected[0].UpdatedAt) < g.cooldown, nil
}

func (g *Gate) emitWebhook(ctx context.Context, tenantID uuid.UUID, suggestionID uuid.UUID, ref care.EntityRef, trigger care.TriggerData) {
	if g.webhook == nil {
		return
	}
	payload := map[string]any{
		"suggestion_id": suggestionID,
		"tenant_id":     tenantID,
		"entity_type":   ref.EntityType,
		"entity_id":     ref.EntityID,
		"trigger_id":    trigger.TriggerID,
	}
	if err := g.webhook.EmitTenantWebhook(ctx, tenantID, "ai.suggestion.generated", payload); err != nil {
		g.logger.Warn("suggestion gate: webhook emission failed", "tenant_id", tenantID, "suggestion_id", suggestionID, "error", err)
	}
}

func (g *Gate) emitAudit(ctx context.Context, tenantID uuid.UUID, trigger care.TriggerData, suggestionID *uuid.UUID, outcome care.OutcomeType, detail string) {
	if g.metrics != nil {
		g.metrics.SuggestionOutcomes.WithLabelValues(string(outcome)).Inc()
	}
	if g.audit == nil {
		return
	}
	event := AuditEvent{
		TenantID:     tenantID,
		TriggerID:    trigger.TriggerID,
		RecordType:   trigger.RecordType,
		RecordID:     trigger.RecordID,
		SuggestionID: suggestionID,
		Outcome:      outcome,
		Detail:       detail,
	}
	if err := g.audit.EmitCareAudit(ctx, event); err != nil {
		g.logger.Warn("suggestion gate: audit emission failed", "tenant_id", tenantID, "outcome", outcome, "error", err)
	}
}

func (g *Gate) recordBudgetActions(actions []string) {
	if g.metrics == nil {
		return
	}
	for _, action := range actions {
		g.metrics.BudgetActionsTaken.WithLabelValues(action).Inc()
	}
}

func withDefaultConfidence(c float64) float64 {
	if c == 0 {
		return defaultConfidence
	}
	return c
}

func withDefaultPriority(p care.TriggerPriority) care.TriggerPriority {
	if p == "" {
		return defaultPriority
	}
	return p
}
