// Package memory provides an in-memory Store implementation adapted from
// the session manager's mutex-guarded map pattern. It has its own unit
// tests and may back a single-process development deployment.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store"
)

type careStateKey struct {
	tenantID   uuid.UUID
	entityType care.EntityType
	entityID   uuid.UUID
}

func keyFor(ref care.EntityRef) careStateKey {
	return careStateKey{tenantID: ref.TenantID, entityType: ref.EntityType, entityID: ref.EntityID}
}

// pendingKey is the dedup anchor: (tenant, trigger, record, status=pending).
type pendingKey struct {
	tenantID   uuid.UUID
	triggerID  care.TriggerType
	recordType care.EntityType
	recordID   uuid.UUID
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	careStates  map[careStateKey]care.CareStateRecord
	history     map[careStateKey][]care.CareHistoryEvent
	suggestions map[uuid.UUID]care.Suggestion
	pending     map[pendingKey]uuid.UUID
	configs     map[uuid.UUID]care.TenantCareConfig
	candidates  map[uuid.UUID]map[care.TriggerType][]store.TriggerCandidate
	activeTenants []uuid.UUID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		careStates:  make(map[careStateKey]care.CareStateRecord),
		history:     make(map[careStateKey][]care.CareHistoryEvent),
		suggestions: make(map[uuid.UUID]care.Suggestion),
		pending:     make(map[pendingKey]uuid.UUID),
		configs:     make(map[uuid.UUID]care.TenantCareConfig),
		candidates:  make(map[uuid.UUID]map[care.TriggerType][]store.TriggerCandidate),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) GetCareState(_ context.Context, ref care.EntityRef) (care.CareStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.careStates[keyFor(ref)]
	if !ok {
		return care.CareStateRecord{}, store.NewOpError("GetCareState", store.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) UpsertCareState(_ context.Context, ref care.EntityRef, state care.CareState, now time.Time) (care.CareStateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(ref)
	rec, existed := s.careStates[key]
	if !existed {
		rec = care.CareStateRecord{EntityRef: ref, CreatedAt: now}
	}
	rec.CareState = state
	rec.LastSignalAt = now
	rec.UpdatedAt = now
	s.careStates[key] = rec
	return rec, nil
}

func (s *Store) AppendCareHistory(_ context.Context, event care.CareHistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyFor(event.EntityRef)
	for _, existing := range s.history[key] {
		if existing.ToState == event.ToState && existing.CreatedAt.Equal(event.CreatedAt) {
			return nil // retry of an already-recorded (entity, to_state, created_at) event
		}
	}
	s.history[key] = append(s.history[key], event)
	return nil
}

func (s *Store) GetCareHistory(_ context.Context, ref care.EntityRef, opts store.HistoryQueryOptions) ([]care.CareHistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := append([]care.CareHistoryEvent(nil), s.history[keyFor(ref)]...)
	sort.Slice(events, func(i, j int) bool {
		if opts.Order == store.SortOrderDesc {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[:opts.Limit]
	}
	return events, nil
}

func (s *Store) InsertSuggestion(_ context.Context, payload store.InsertSuggestionPayload) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := pendingKey{
		tenantID:   payload.EntityRef.TenantID,
		triggerID:  payload.TriggerID,
		recordType: payload.EntityRef.EntityType,
		recordID:   payload.EntityRef.EntityID,
	}
	if payload.Status == care.SuggestionStatusPending {
		if _, exists := s.pending[pk]; exists {
			return uuid.Nil, store.NewOpError("InsertSuggestion", store.ErrConstraintViolation)
		}
	}

	now := time.Now()
	id := uuid.New()
	suggestion := care.Suggestion{
		ID:         id,
		EntityRef:  payload.EntityRef,
		TriggerID:  payload.TriggerID,
		Action:     payload.Action,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
		Priority:   payload.Priority,
		Status:     payload.Status,
		Outcome:    payload.Outcome,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.suggestions[id] = suggestion
	if payload.Status == care.SuggestionStatusPending {
		s.pending[pk] = id
	}
	return id, nil
}

func (s *Store) QuerySuggestions(_ context.Context, filter store.QuerySuggestionsFilter) ([]care.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []care.Suggestion
	for _, sug := range s.suggestions {
		if sug.EntityRef.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && sug.Status != filter.Status {
			continue
		}
		if filter.TriggerID != "" && sug.TriggerID != filter.TriggerID {
			continue
		}
		if filter.Priority != "" && sug.Priority != filter.Priority {
			continue
		}
		if filter.RecordType != "" && sug.EntityRef.EntityType != filter.RecordType {
			continue
		}
		if filter.RecordID != uuid.Nil && sug.EntityRef.EntityID != filter.RecordID {
			continue
		}
		matched = append(matched, sug)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	if filter.Offset > 0 && filter.Offset < len(matched) {
		matched = matched[filter.Offset:]
	} else if filter.Offset >= len(matched) {
		matched = nil
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *Store) LoadCareConfig(_ context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[tenantID]
	if !ok {
		return care.TenantCareConfig{}, store.NewOpError("LoadCareConfig", store.ErrNotFound)
	}
	return cfg, nil
}

func (s *Store) ScanTriggerCandidates(_ context.Context, tenantID uuid.UUID, triggerType care.TriggerType) ([]store.TriggerCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byTenant, ok := s.candidates[tenantID]
	if !ok {
		return nil, nil
	}
	return append([]store.TriggerCandidate(nil), byTenant[triggerType]...), nil
}

func (s *Store) ListActiveTenantIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uuid.UUID(nil), s.activeTenants...), nil
}

// --- Test/seed helpers (not part of store.Store) ---

// SeedConfig installs a TenantCareConfig for tests.
func (s *Store) SeedConfig(cfg care.TenantCareConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.TenantID] = cfg
}

// SeedCandidates installs trigger candidates for a tenant/trigger pair.
func (s *Store) SeedCandidates(tenantID uuid.UUID, triggerType care.TriggerType, candidates []store.TriggerCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidates[tenantID] == nil {
		s.candidates[tenantID] = make(map[care.TriggerType][]store.TriggerCandidate)
	}
	s.candidates[tenantID][triggerType] = candidates
}

// SeedActiveTenants sets the tenant list ListActiveTenantIDs returns.
func (s *Store) SeedActiveTenants(tenantIDs ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTenants = tenantIDs
}
