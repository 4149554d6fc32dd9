package care

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Thresholds holds the integer day thresholds the state engine reads once at
// start-up (§4.D). Defaults: at_risk = 14 days, dormant = 30 days.
type Thresholds struct {
	AtRiskSilenceDays  int
	DormantSilenceDays int
}

// DefaultThresholds returns the spec-documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{AtRiskSilenceDays: 14, DormantSilenceDays: 30}
}

// TransitionProposal is the output of ProposeTransition: a candidate state
// change with a mandatory, non-empty, human-readable reason.
type TransitionProposal struct {
	EntityRef EntityRef
	FromState CareState
	ToState   CareState
	Reason    string
	Meta      map[string]any
}

// WriteMode gates whether ApplyTransition is allowed to touch the store.
// ShadowMode true means observe-only: the transition is computed and logged
// but never persisted (glossary: "Shadow mode").
type WriteMode struct {
	StateWriteEnabled bool
	ShadowMode        bool
}

// idempotencyNamespace is the fixed namespace used to derive deterministic
// history-event idempotency keys from (entity, to_state, created_at).
var idempotencyNamespace = uuid.MustParse("7b43f8d0-2f0b-4f60-9b0a-3a2b6a9f9d10")

// ProposeTransition evaluates the priority-ordered rules in §4.D against the
// current state and observed signals, returning nil when no rule fires.
// now is passed explicitly so the function stays pure and testable.
func ProposeTransition(current CareState, signals CareSignals, th Thresholds, now time.Time) *TransitionProposal {
	resolved, meta := resolveSilenceDays(signals, now)

	switch {
	case signals.ExplicitRejection && current != CareStateLost:
		return proposal(current, CareStateLost, "explicit rejection recorded", meta)

	case current == CareStateDormant && signals.LastInboundAt != nil:
		return proposal(current, CareStateReactivated, "inbound contact received while dormant", meta)

	case current == CareStateAtRisk && resolved != nil && *resolved >= th.DormantSilenceDays:
		return proposal(current, CareStateDormant, fmt.Sprintf("silence of %d days reached dormant threshold (%d)", *resolved, th.DormantSilenceDays), meta)

	case current != CareStateAtRisk && current != CareStateDormant && current != CareStateLost &&
		resolved != nil && *resolved >= th.AtRiskSilenceDays:
		return proposal(current, CareStateAtRisk, fmt.Sprintf("silence of %d days reached at-risk threshold (%d)", *resolved, th.AtRiskSilenceDays), meta)

	case current == CareStateUnaware && signals.LastInboundAt != nil:
		return proposal(current, CareStateAware, "first inbound signal received", meta)

	case current == CareStateAware && signals.HasBidirectional:
		return proposal(current, CareStateEngaged, "bidirectional exchange observed", meta)

	case current == CareStateEngaged && signals.ProposalSent:
		return proposal(current, CareStateEvaluating, "proposal sent to entity", meta)

	case current == CareStateEvaluating && signals.CommitmentRecorded:
		return proposal(current, CareStateCommitted, "commitment recorded", meta)

	case current == CareStateCommitted && (signals.ContractSigned || signals.PaymentReceived || signals.MeetingCompleted):
		return proposal(current, CareStateActive, "contract signed, payment received, or meeting completed", meta)
	}

	return nil
}

// proposal builds a TransitionProposal, skipping identity transitions by
// returning nil when from == to (§8: identity transitions are not persisted).
func proposal(from, to CareState, reason string, meta map[string]any) *TransitionProposal {
	if from == to {
		return nil
	}
	return &TransitionProposal{FromState: from, ToState: to, Reason: reason, Meta: meta}
}

// resolveSilenceDays overrides the caller-provided silence_days when
// last_inbound_at yields a smaller (more recent) value, recording the
// override in meta (§4.D enrichment).
func resolveSilenceDays(signals CareSignals, now time.Time) (*int, map[string]any) {
	meta := map[string]any{}
	resolved := signals.SilenceDays

	if signals.LastInboundAt != nil {
		fromInbound := int(now.Sub(*signals.LastInboundAt).Hours() / 24)
		if resolved == nil || fromInbound < *resolved {
			meta["silence_days_overridden"] = true
			meta["silence_days_from_last_inbound"] = fromInbound
			if resolved != nil {
				meta["silence_days_caller_provided"] = *resolved
			}
			resolved = &fromInbound
		}
	}

	meta["engagement_score"] = engagementScore(signals, resolved)
	return resolved, meta
}

// engagementScore is a bounded additive scalar in [-5, 10], advisory metadata
// only — never used for gating (§4.D).
func engagementScore(signals CareSignals, silenceDays *int) int {
	score := 0
	if signals.HasBidirectional {
		score += 2
	}
	if signals.ProposalSent {
		score += 1
	}
	if signals.CommitmentRecorded {
		score += 2
	}
	if signals.MeetingScheduled {
		score += 1
	}
	if signals.MeetingCompleted {
		score += 2
	}
	if signals.ContractSigned {
		score += 3
	}
	if signals.PaymentReceived {
		score += 3
	}
	if signals.NegativeSentiment {
		score -= 2
	}
	if signals.ExplicitRejection {
		score -= 5
	}
	switch {
	case silenceDays == nil:
		// no silence signal either way
	case *silenceDays >= 30:
		score -= 3
	case *silenceDays >= 14:
		score -= 1
	}
	if score > 10 {
		score = 10
	}
	if score < -5 {
		score = -5
	}
	return score
}

// StateStore is the narrow subset of the persistence store (§6) the state
// engine needs to apply a transition. Defined at point of use so any store
// implementation satisfies it structurally.
type StateStore interface {
	UpsertCareState(ctx context.Context, ref EntityRef, state CareState, now time.Time) (CareStateRecord, error)
	AppendCareHistory(ctx context.Context, event CareHistoryEvent) error
}

// Actor identifies who caused an applied transition (defaults to system).
type Actor struct {
	Type ActorType
	ID   string
}

// SystemActor is the default actor for transitions the engine applies on its
// own initiative (e.g. from the trigger worker's signal adapter).
var SystemActor = Actor{Type: ActorTypeSystem}

// ApplyTransition performs the two store operations in order: UpsertCareState
// then AppendCareHistory, which together form a single logical write (§4.D).
// It refuses to persist a proposal with an empty or whitespace-only reason,
// and refuses identity transitions (from == to never reaches here via
// ProposeTransition, but is checked again for callers that construct a
// TransitionProposal directly).
func ApplyTransition(ctx context.Context, ref EntityRef, proposal *TransitionProposal, store StateStore, actor Actor, mode WriteMode, now time.Time) error {
	if !ref.Valid() {
		return NewValidationError("entity_ref", ErrInvalidEntityRef)
	}
	if proposal == nil {
		return nil
	}
	if !proposal.ToState.IsValid() {
		return NewValidationError("to_state", ErrInvalidCareState)
	}
	if strings.TrimSpace(proposal.Reason) == "" {
		return NewValidationError("reason", ErrEmptyReason)
	}
	if proposal.FromState == proposal.ToState {
		return ErrIdentityTransition
	}

	if actor.Type == "" {
		actor = SystemActor
	}

	log := slog.With("tenant_id", ref.TenantID, "entity_type", ref.EntityType, "entity_id", ref.EntityID,
		"from_state", proposal.FromState, "to_state", proposal.ToState)

	if !mode.StateWriteEnabled || mode.ShadowMode {
		log.Info("shadow mode: transition computed but not persisted", "reason", proposal.Reason)
		return nil
	}

	if _, err := store.UpsertCareState(ctx, ref, proposal.ToState, now); err != nil {
		return fmt.Errorf("care: upsert care state: %w", err)
	}

	event := CareHistoryEvent{
		EntityRef: ref,
		FromState: proposal.FromState,
		ToState:   proposal.ToState,
		EventType: HistoryEventStateApplied,
		Reason:    proposal.Reason,
		Meta:      proposal.Meta,
		ActorType: actor.Type,
		ActorID:   actor.ID,
		CreatedAt: now,
	}
	if err := store.AppendCareHistory(ctx, event); err != nil {
		return fmt.Errorf("care: append care history: %w", err)
	}

	log.Info("transition applied", "reason", proposal.Reason)
	return nil
}

// HistoryIdempotencyKey derives a deterministic event id from (entity,
// to_state, created_at) so stores without transaction support can guarantee
// idempotent retry of AppendCareHistory (§4.D).
func HistoryIdempotencyKey(ref EntityRef, toState CareState, createdAt time.Time) uuid.UUID {
	data := fmt.Sprintf("%s|%s|%s|%s|%d", ref.TenantID, ref.EntityType, ref.EntityID, toState, createdAt.UnixNano())
	return uuid.NewSHA1(idempotencyNamespace, []byte(data))
}
