// Package store declares the persistence abstraction (§6) the core consumes.
// It is a narrow interface; concrete adapters live in pkg/store/postgres
// (production) and pkg/store/memory (tests and local development).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
)

// HistoryQueryOptions bounds a GetCareHistory call.
type HistoryQueryOptions struct {
	Limit int
	Order SortOrder
}

// SortOrder is the direction CareHistoryEvents are returned in.
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// InsertSuggestionPayload is what the suggestion gate passes to InsertSuggestion.
// Defaults (confidence=0.75, reasoning="", priority="normal") are applied by
// the suggestion gate before this payload is constructed (§4.H.3).
type InsertSuggestionPayload struct {
	EntityRef  care.EntityRef
	TriggerID  care.TriggerType
	Action     care.SuggestedAction
	Confidence float64
	Reasoning  string
	Priority   care.TriggerPriority
	Status     care.SuggestionStatus
	Outcome    care.OutcomeType
}

// QuerySuggestionsFilter bounds a QuerySuggestions call. Zero-value fields
// are unconstrained except Limit, which callers must set explicitly.
type QuerySuggestionsFilter struct {
	TenantID   uuid.UUID
	Status     care.SuggestionStatus
	TriggerID  care.TriggerType
	Priority   care.TriggerPriority
	RecordType care.EntityType
	RecordID   uuid.UUID // zero value (uuid.Nil) means unconstrained
	Limit      int
	Offset     int
}

// TriggerCandidate is one row returned by ScanTriggerCandidates: a record
// that currently matches the queried TriggerType's condition.
type TriggerCandidate struct {
	RecordID   uuid.UUID
	RecordType care.EntityType
	Context    map[string]any
}

// Store is the full persistence abstraction the core consumes. Every
// operation is scoped by tenant_id, either explicitly (as a parameter) or
// implicitly (embedded in the EntityRef argument) — tenant isolation is the
// adapter's responsibility (§5).
type Store interface {
	// GetCareState returns ErrNotFound when no row exists for ref.
	GetCareState(ctx context.Context, ref care.EntityRef) (care.CareStateRecord, error)

	// UpsertCareState creates or updates the CareStateRecord for ref,
	// setting care_state, last_signal_at=now, updated_at=now. Satisfies
	// care.StateStore.
	UpsertCareState(ctx context.Context, ref care.EntityRef, state care.CareState, now time.Time) (care.CareStateRecord, error)

	// AppendCareHistory appends one row to the append-only history log.
	// Implementations must treat HistoryIdempotencyKey-equivalent retries as
	// no-ops when the store lacks transactional guarantees (§4.D).
	AppendCareHistory(ctx context.Context, event care.CareHistoryEvent) error

	// GetCareHistory returns up to opts.Limit events for ref in opts.Order.
	GetCareHistory(ctx context.Context, ref care.EntityRef, opts HistoryQueryOptions) ([]care.CareHistoryEvent, error)

	// InsertSuggestion inserts a pending suggestion. Returns
	// ErrConstraintViolation when a pending row already exists for the same
	// (tenant, trigger, record) — the dedup anchor (§3, §8).
	InsertSuggestion(ctx context.Context, payload InsertSuggestionPayload) (uuid.UUID, error)

	// QuerySuggestions returns suggestions matching filter, used by the
	// suggestion gate's cooldown check and by any external read surface.
	QuerySuggestions(ctx context.Context, filter QuerySuggestionsFilter) ([]care.Suggestion, error)

	// LoadCareConfig returns ErrNotFound when no row exists for tenantID.
	LoadCareConfig(ctx context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error)

	// ScanTriggerCandidates returns every record currently matching
	// triggerType's condition for tenantID (§4.G).
	ScanTriggerCandidates(ctx context.Context, tenantID uuid.UUID, triggerType care.TriggerType) ([]TriggerCandidate, error)

	// ListActiveTenantIDs returns every tenant the trigger worker should scan
	// this cycle.
	ListActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}
