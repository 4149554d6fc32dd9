package care

import (
	"time"

	"github.com/google/uuid"
)

// EntityRef uniquely identifies a CRM record: (tenant_id, entity_type, entity_id).
type EntityRef struct {
	TenantID   uuid.UUID
	EntityType EntityType
	EntityID   uuid.UUID
}

// Valid reports whether every field of the ref is well-formed: both UUIDs
// set and EntityType a member of the closed set.
func (r EntityRef) Valid() bool {
	return r.TenantID != uuid.Nil && r.EntityID != uuid.Nil && r.EntityType.IsValid()
}

// CareStateRecord is the current lifecycle snapshot for one EntityRef. At
// most one row exists per EntityRef (store-enforced uniqueness).
type CareStateRecord struct {
	EntityRef        EntityRef
	CareState        CareState
	HandsOffEnabled  bool
	EscalationStatus EscalationStatus
	LastSignalAt     time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CareHistoryEvent is one row of the append-only audit trail for an entity's
// lifecycle. Reason must be non-empty; this is enforced at write time.
type CareHistoryEvent struct {
	EntityRef EntityRef
	FromState CareState // empty when not applicable (e.g. signal_recorded)
	ToState   CareState // empty when not applicable
	EventType HistoryEventType
	Reason    string
	Meta      map[string]any
	ActorType ActorType
	ActorID   string
	CreatedAt time.Time
}

// CareSignals is the set of optional signals observed for an entity. Absence
// of a field (nil pointer / zero-value-with-HasX flag) means "no signal",
// never "false"/"zero" — so pointers are used for tri-state fields that
// distinguish absence from explicit false/zero.
type CareSignals struct {
	LastInboundAt      *time.Time
	LastOutboundAt     *time.Time
	HasBidirectional   bool
	ProposalSent       bool
	CommitmentRecorded bool
	NegativeSentiment  bool
	ExplicitRejection  bool
	SilenceDays        *int
	MeetingScheduled   bool
	MeetingCompleted   bool
	ContractSigned     bool
	PaymentReceived    bool
	EngagementScore    *int
	Meta               map[string]any
}

// TriggerData is what the trigger worker forwards to the suggestion gate for
// one candidate record in one scan cycle.
type TriggerData struct {
	TriggerID  TriggerType
	RecordType EntityType
	RecordID   uuid.UUID
	Context    map[string]any
	Priority   TriggerPriority
}

// Suggestion is a stored, gated proposal for an action. At most one row with
// status=pending may exist for a given (tenant, trigger, record) — the
// store enforces this as a unique constraint, the dedup anchor for §4.H.
type Suggestion struct {
	ID         uuid.UUID
	EntityRef  EntityRef
	TriggerID  TriggerType
	Action     SuggestedAction
	Confidence float64
	Reasoning  string
	Priority   TriggerPriority
	Status     SuggestionStatus
	Outcome    OutcomeType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SuggestedAction names the tool the suggestion proposes and its arguments.
// Tool dispatch is resolved via a registry keyed by ToolName — see
// pkg/suggestion's tool registry, never a dynamic-dispatch name lookup.
type SuggestedAction struct {
	ToolName string
	ToolArgs map[string]any
}

// TenantCareConfig is the per-tenant workflow configuration resolved by the
// tenant config cache (§4.E).
type TenantCareConfig struct {
	TenantID           uuid.UUID
	WorkflowID         string
	WebhookURL         string
	WebhookSecret      string
	IsEnabled          bool
	StateWriteEnabled  bool
	ShadowMode         bool
	WebhookTimeoutMS   int
	WebhookMaxRetries  int
	Source             ConfigSource
}

// ConfigSource records whether a TenantCareConfig was resolved from the
// store or synthesized from process-wide environment defaults.
type ConfigSource string

const (
	ConfigSourceDatabase    ConfigSource = "database"
	ConfigSourceEnvironment ConfigSource = "environment"
)
