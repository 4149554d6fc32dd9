package postgres

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store"
)

const uniqueViolationCode = "23505"

// Store implements store.Store against PostgreSQL via database/sql with the
// pgx stdlib driver.
type Store struct {
	db *stdsql.DB
}

// NewStore wraps a *Client as a store.Store.
func NewStore(client *Client) *Store {
	return &Store{db: client.db}
}

var _ store.Store = (*Store)(nil)

func (s *Store) GetCareState(ctx context.Context, ref care.EntityRef) (care.CareStateRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT care_state, hands_off_enabled, escalation_status, last_signal_at, created_at, updated_at
		FROM care_state WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3`,
		ref.TenantID, string(ref.EntityType), ref.EntityID)

	var rec care.CareStateRecord
	var careState, escalationStatus string
	rec.EntityRef = ref
	if err := row.Scan(&careState, &rec.HandsOffEnabled, &escalationStatus, &rec.LastSignalAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return care.CareStateRecord{}, store.NewOpError("GetCareState", store.ErrNotFound)
		}
		return care.CareStateRecord{}, store.NewOpError("GetCareState", err)
	}
	rec.CareState = care.CareState(careState)
	rec.EscalationStatus = care.EscalationStatus(escalationStatus)
	return rec, nil
}

func (s *Store) UpsertCareState(ctx context.Context, ref care.EntityRef, state care.CareState, now time.Time) (care.CareStateRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO care_state (tenant_id, entity_type, entity_id, care_state, last_signal_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $5)
		ON CONFLICT (tenant_id, entity_type, entity_id)
		DO UPDATE SET care_state = EXCLUDED.care_state, last_signal_at = EXCLUDED.last_signal_at, updated_at = EXCLUDED.updated_at
		RETURNING hands_off_enabled, escalation_status, created_at`,
		ref.TenantID, string(ref.EntityType), ref.EntityID, string(state), now)

	var rec care.CareStateRecord
	var escalationStatus string
	rec.EntityRef = ref
	rec.CareState = state
	rec.LastSignalAt = now
	rec.UpdatedAt = now
	if err := row.Scan(&rec.HandsOffEnabled, &escalationStatus, &rec.CreatedAt); err != nil {
		return care.CareStateRecord{}, store.NewOpError("UpsertCareState", err)
	}
	rec.EscalationStatus = care.EscalationStatus(escalationStatus)
	return rec, nil
}

func (s *Store) AppendCareHistory(ctx context.Context, event care.CareHistoryEvent) error {
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		return store.NewOpError("AppendCareHistory", fmt.Errorf("marshal meta: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO care_history (tenant_id, entity_type, entity_id, from_state, to_state, event_type, reason, meta, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.EntityRef.TenantID, string(event.EntityRef.EntityType), event.EntityRef.EntityID,
		string(event.FromState), string(event.ToState), string(event.EventType), event.Reason,
		metaJSON, string(event.ActorType), event.ActorID, event.CreatedAt)
	if err != nil {
		return store.NewOpError("AppendCareHistory", err)
	}
	return nil
}

func (s *Store) GetCareHistory(ctx context.Context, ref care.EntityRef, opts store.HistoryQueryOptions) ([]care.CareHistoryEvent, error) {
	order := "ASC"
	if opts.Order == store.SortOrderDesc {
		order = "DESC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT from_state, to_state, event_type, reason, meta, actor_type, actor_id, created_at
		FROM care_history WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at %s LIMIT $4`, order),
		ref.TenantID, string(ref.EntityType), ref.EntityID, limit)
	if err != nil {
		return nil, store.NewOpError("GetCareHistory", err)
	}
	defer rows.Close()

	var events []care.CareHistoryEvent
	for rows.Next() {
		var fromState, toState, eventType, actorType string
		var metaJSON []byte
		event := care.CareHistoryEvent{EntityRef: ref}
		if err := rows.Scan(&fromState, &toState, &eventType, &event.Reason, &metaJSON, &actorType, &event.ActorID, &event.CreatedAt); err != nil {
			return nil, store.NewOpError("GetCareHistory", err)
		}
		event.FromState = care.CareState(fromState)
		event.ToState = care.CareState(toState)
		event.EventType = care.HistoryEventType(eventType)
		event.ActorType = care.ActorType(actorType)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &event.Meta); err != nil {
				return nil, store.NewOpError("GetCareHistory", fmt.Errorf("unmarshal meta: %w", err))
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) InsertSuggestion(ctx context.Context, payload store.InsertSuggestionPayload) (uuid.UUID, error) {
	toolArgsJSON, err := json.Marshal(payload.Action.ToolArgs)
	if err != nil {
		return uuid.Nil, store.NewOpError("InsertSuggestion", fmt.Errorf("marshal tool_args: %w", err))
	}

	id := uuid.New()
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO suggestions (id, tenant_id, entity_type, entity_id, trigger_id, tool_name, tool_args, confidence, reasoning, priority, status, outcome_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		id, payload.EntityRef.TenantID, string(payload.EntityRef.EntityType), payload.EntityRef.EntityID,
		string(payload.TriggerID), payload.Action.ToolName, toolArgsJSON, payload.Confidence,
		payload.Reasoning, string(payload.Priority), string(payload.Status), string(payload.Outcome), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return uuid.Nil, store.NewOpError("InsertSuggestion", store.ErrConstraintViolation)
		}
		return uuid.Nil, store.NewOpError("InsertSuggestion", err)
	}
	return id, nil
}

func (s *Store) QuerySuggestions(ctx context.Context, filter store.QuerySuggestionsFilter) ([]care.Suggestion, error) {
	query := `SELECT id, entity_type, entity_id, trigger_id, tool_name, tool_args, confidence, reasoning, priority, status, outcome_type, created_at, updated_at
		FROM suggestions WHERE tenant_id = $1`
	args := []any{filter.TenantID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.TriggerID != "" {
		args = append(args, string(filter.TriggerID))
		query += fmt.Sprintf(" AND trigger_id = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filter.RecordType != "" {
		args = append(args, string(filter.RecordType))
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.RecordID != uuid.Nil {
		args = append(args, filter.RecordID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewOpError("QuerySuggestions", err)
	}
	defer rows.Close()

	var results []care.Suggestion
	for rows.Next() {
		var entityType, triggerID, priority, status, outcome string
		var toolArgsJSON []byte
		sug := care.Suggestion{EntityRef: care.EntityRef{TenantID: filter.TenantID}}
		if err := rows.Scan(&sug.ID, &entityType, &sug.EntityRef.EntityID, &triggerID, &sug.Action.ToolName,
			&toolArgsJSON, &sug.Confidence, &sug.Reasoning, &priority, &status, &outcome, &sug.CreatedAt, &sug.UpdatedAt); err != nil {
			return nil, store.NewOpError("QuerySuggestions", err)
		}
		sug.EntityRef.EntityType = care.EntityType(entityType)
		sug.TriggerID = care.TriggerType(triggerID)
		sug.Priority = care.TriggerPriority(priority)
		sug.Status = care.SuggestionStatus(status)
		sug.Outcome = care.OutcomeType(outcome)
		if len(toolArgsJSON) > 0 {
			if err := json.Unmarshal(toolArgsJSON, &sug.Action.ToolArgs); err != nil {
				return nil, store.NewOpError("QuerySuggestions", fmt.Errorf("unmarshal tool_args: %w", err))
			}
		}
		results = append(results, sug)
	}
	return results, rows.Err()
}

func (s *Store) LoadCareConfig(ctx context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT workflow_id, webhook_url, webhook_secret, is_enabled, state_write_enabled, shadow_mode, webhook_timeout_ms, webhook_max_retries
		FROM tenant_care_config WHERE tenant_id = $1`, tenantID)

	cfg := care.TenantCareConfig{TenantID: tenantID, Source: care.ConfigSourceDatabase}
	if err := row.Scan(&cfg.WorkflowID, &cfg.WebhookURL, &cfg.WebhookSecret, &cfg.IsEnabled,
		&cfg.StateWriteEnabled, &cfg.ShadowMode, &cfg.WebhookTimeoutMS, &cfg.WebhookMaxRetries); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return care.TenantCareConfig{}, store.NewOpError("LoadCareConfig", store.ErrNotFound)
		}
		return care.TenantCareConfig{}, store.NewOpError("LoadCareConfig", err)
	}
	return cfg, nil
}

func (s *Store) ScanTriggerCandidates(ctx context.Context, tenantID uuid.UUID, triggerType care.TriggerType) ([]store.TriggerCandidate, error) {
	query, ok := triggerCandidateQueries[triggerType]
	if !ok {
		return nil, store.NewOpError("ScanTriggerCandidates", fmt.Errorf("no candidate query registered for trigger type %q", triggerType))
	}

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, store.NewOpError("ScanTriggerCandidates", err)
	}
	defer rows.Close()

	var candidates []store.TriggerCandidate
	for rows.Next() {
		var recordType string
		var contextJSON []byte
		c := store.TriggerCandidate{}
		if err := rows.Scan(&c.RecordID, &recordType, &contextJSON); err != nil {
			return nil, store.NewOpError("ScanTriggerCandidates", err)
		}
		c.RecordType = care.EntityType(recordType)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &c.Context); err != nil {
				return nil, store.NewOpError("ScanTriggerCandidates", fmt.Errorf("unmarshal context: %w", err))
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *Store) ListActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM tenant_care_config WHERE is_enabled`)
	if err != nil {
		return nil, store.NewOpError("ListActiveTenantIDs", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewOpError("ListActiveTenantIDs", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
