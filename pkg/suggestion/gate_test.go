package suggestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store"
)

type fakeStore struct {
	querySuggestions func(store.QuerySuggestionsFilter) ([]care.Suggestion, error)
	insertSuggestion func(store.InsertSuggestionPayload) (uuid.UUID, error)
}

func (f *fakeStore) QuerySuggestions(_ context.Context, filter store.QuerySuggestionsFilter) ([]care.Suggestion, error) {
	return f.querySuggestions(filter)
}

func (f *fakeStore) InsertSuggestion(_ context.Context, payload store.InsertSuggestionPayload) (uuid.UUID, error) {
	return f.insertSuggestion(payload)
}

type fakeGenerator struct {
	output *GenerationOutput
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ GenerationInput) (*GenerationOutput, error) {
	return f.output, f.err
}

type fakeWebhook struct {
	calls int
	err   error
}

func (f *fakeWebhook) EmitTenantWebhook(_ context.Context, _ uuid.UUID, _ string, _ map[string]any) error {
	f.calls++
	return f.err
}

type fakeAudit struct {
	events []AuditEvent
	err    error
}

func (f *fakeAudit) EmitCareAudit(_ context.Context, event AuditEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeNotifier struct {
	calls []care.Suggestion
}

func (f *fakeNotifier) NotifyCriticalSuggestion(_ context.Context, _ uuid.UUID, sug care.Suggestion) {
	f.calls = append(f.calls, sug)
}

func noMatches(store.QuerySuggestionsFilter) ([]care.Suggestion, error) { return nil, nil }

func baseTrigger() care.TriggerData {
	return care.TriggerData{
		TriggerID:  care.TriggerTypeLeadStagnant,
		RecordType: care.EntityTypeLead,
		RecordID:   uuid.New(),
		Priority:   care.TriggerPriorityNormal,
	}
}

func TestCreateSuggestionIfNew_DuplicatePendingSuppressed(t *testing.T) {
	trigger := baseTrigger()
	st := &fakeStore{
		querySuggestions: func(f store.QuerySuggestionsFilter) ([]care.Suggestion, error) {
			if f.Status == care.SuggestionStatusPending {
				return []care.Suggestion{{ID: uuid.New()}}, nil
			}
			return nil, nil
		},
	}
	gen := &fakeGenerator{}
	audit := &fakeAudit{}
	g := New(st, gen, nil, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	assert.Nil(t, id)
	require.Len(t, audit.events, 1)
	assert.Equal(t, care.OutcomeDuplicateSuppressed, audit.events[0].Outcome)
}

func TestCreateSuggestionIfNew_RecentlyRejectedSuppressed(t *testing.T) {
	trigger := baseTrigger()
	st := &fakeStore{
		querySuggestions: func(f store.QuerySuggestionsFilter) ([]care.Suggestion, error) {
			if f.Status == care.SuggestionStatusRejected {
				return []care.Suggestion{{ID: uuid.New(), UpdatedAt: time.Now().Add(-time.Hour)}}, nil
			}
			return nil, nil
		},
	}
	audit := &fakeAudit{}
	g := New(st, &fakeGenerator{}, nil, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Equal(t, care.OutcomeDuplicateSuppressed, audit.events[0].Outcome)
}

func TestCreateSuggestionIfNew_OldRejectionDoesNotSuppress(t *testing.T) {
	trigger := baseTrigger()
	st := &fakeStore{
		querySuggestions: func(f store.QuerySuggestionsFilter) ([]care.Suggestion, error) {
			if f.Status == care.SuggestionStatusRejected {
				return []care.Suggestion{{ID: uuid.New(), UpdatedAt: time.Now().Add(-48 * time.Hour)}}, nil
			}
			return nil, nil
		},
		insertSuggestion: func(store.InsertSuggestionPayload) (uuid.UUID, error) { return uuid.New(), nil },
	}
	gen := &fakeGenerator{output: &GenerationOutput{Action: care.SuggestedAction{ToolName: "send_followup_email"}}}
	audit := &fakeAudit{}
	g := New(st, gen, nil, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, care.OutcomeSuggestionCreated, audit.events[0].Outcome)
}

func TestCreateSuggestionIfNew_GenerationFailedReturnsNilNoInsert(t *testing.T) {
	trigger := baseTrigger()
	inserted := false
	st := &fakeStore{
		querySuggestions: noMatches,
		insertSuggestion: func(store.InsertSuggestionPayload) (uuid.UUID, error) { inserted = true; return uuid.New(), nil },
	}
	audit := &fakeAudit{}
	g := New(st, &fakeGenerator{output: nil}, nil, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.False(t, inserted)
	assert.Equal(t, care.OutcomeGenerationFailed, audit.events[0].Outcome)
}

func TestCreateSuggestionIfNew_SuccessEmitsWebhookAndAudit(t *testing.T) {
	trigger := baseTrigger()
	insertedID := uuid.New()
	st := &fakeStore{
		querySuggestions: noMatches,
		insertSuggestion: func(p store.InsertSuggestionPayload) (uuid.UUID, error) {
			assert.Equal(t, defaultConfidence, p.Confidence)
			assert.Equal(t, care.TriggerPriorityNormal, p.Priority)
			return insertedID, nil
		},
	}
	gen := &fakeGenerator{output: &GenerationOutput{Action: care.SuggestedAction{ToolName: "schedule_call"}}}
	hook := &fakeWebhook{}
	audit := &fakeAudit{}
	g := New(st, gen, hook, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, insertedID, *id)
	assert.Equal(t, 1, hook.calls)
	assert.Equal(t, care.OutcomeSuggestionCreated, audit.events[0].Outcome)
}

func TestCreateSuggestionIfNew_ConstraintViolationReturnsNilNoWebhook(t *testing.T) {
	trigger := baseTrigger()
	st := &fakeStore{
		querySuggestions: noMatches,
		insertSuggestion: func(store.InsertSuggestionPayload) (uuid.UUID, error) {
			return uuid.Nil, store.NewOpError("InsertSuggestion", store.ErrConstraintViolation)
		},
	}
	gen := &fakeGenerator{output: &GenerationOutput{Action: care.SuggestedAction{ToolName: "log_activity"}}}
	hook := &fakeWebhook{}
	audit := &fakeAudit{}
	g := New(st, gen, hook, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Equal(t, 0, hook.calls)
	assert.Equal(t, care.OutcomeConstraintViolation, audit.events[0].Outcome)
}

func TestCreateSuggestionIfNew_StoreErrorOnCooldownCheckIsError(t *testing.T) {
	trigger := baseTrigger()
	st := &fakeStore{
		querySuggestions: func(store.QuerySuggestionsFilter) ([]care.Suggestion, error) {
			return nil, errors.New("db unavailable")
		},
	}
	audit := &fakeAudit{}
	g := New(st, &fakeGenerator{}, nil, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Equal(t, care.OutcomeError, audit.events[0].Outcome)
}

func TestCreateSuggestionIfNew_WebhookFailureStillReturnsID(t *testing.T) {
	trigger := baseTrigger()
	insertedID := uuid.New()
	st := &fakeStore{
		querySuggestions: noMatches,
		insertSuggestion: func(store.InsertSuggestionPayload) (uuid.UUID, error) { return insertedID, nil },
	}
	gen := &fakeGenerator{output: &GenerationOutput{Action: care.SuggestedAction{ToolName: "log_activity"}}}
	hook := &fakeWebhook{err: errors.New("webhook endpoint down")}
	audit := &fakeAudit{}
	g := New(st, gen, hook, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, insertedID, *id)
}

func TestCreateSuggestionIfNew_CriticalPrioritySuggestionNotifies(t *testing.T) {
	trigger := baseTrigger()
	trigger.Priority = care.TriggerPriorityCritical
	insertedID := uuid.New()
	st := &fakeStore{
		querySuggestions: noMatches,
		insertSuggestion: func(store.InsertSuggestionPayload) (uuid.UUID, error) { return insertedID, nil },
	}
	gen := &fakeGenerator{output: &GenerationOutput{Action: care.SuggestedAction{ToolName: "escalate_to_manager"}}}
	notifier := &fakeNotifier{}
	g := New(st, gen, nil, &fakeAudit{}, nil).WithCriticalNotifier(notifier)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, care.TriggerPriorityCritical, notifier.calls[0].Priority)
}

func TestCreateSuggestionIfNew_NonCriticalPrioritySkipsNotifier(t *testing.T) {
	trigger := baseTrigger()
	st := &fakeStore{
		querySuggestions: noMatches,
		insertSuggestion: func(store.InsertSuggestionPayload) (uuid.UUID, error) { return uuid.New(), nil },
	}
	gen := &fakeGenerator{output: &GenerationOutput{Action: care.SuggestedAction{ToolName: "log_activity"}}}
	notifier := &fakeNotifier{}
	g := New(st, gen, nil, &fakeAudit{}, nil).WithCriticalNotifier(notifier)

	_, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	assert.Empty(t, notifier.calls)
}

func TestCreateSuggestionIfNew_UnknownToolReportsErrorNoInsert(t *testing.T) {
	trigger := baseTrigger()
	inserted := false
	st := &fakeStore{
		querySuggestions: noMatches,
		insertSuggestion: func(store.InsertSuggestionPayload) (uuid.UUID, error) { inserted = true; return uuid.New(), nil },
	}
	gen := &fakeGenerator{output: &GenerationOutput{Action: care.SuggestedAction{ToolName: "delete_everything"}}}
	audit := &fakeAudit{}
	g := New(st, gen, nil, audit, nil)

	id, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.False(t, inserted)
	require.Len(t, audit.events, 1)
	assert.Equal(t, care.OutcomeError, audit.events[0].Outcome)

	var toolErr *UnknownToolError
	assert.ErrorAs(t, &UnknownToolError{ToolName: "delete_everything"}, &toolErr)
	assert.ErrorIs(t, &UnknownToolError{ToolName: "delete_everything"}, ErrUnknownTool)
}

func TestCreateSuggestionIfNew_AuditFailureNeverPropagates(t *testing.T) {
	trigger := baseTrigger()
	st := &fakeStore{querySuggestions: noMatches}
	audit := &fakeAudit{err: errors.New("audit sink down")}
	g := New(st, &fakeGenerator{}, nil, audit, nil)

	assert.NotPanics(t, func() {
		_, err := g.CreateSuggestionIfNew(context.Background(), uuid.New(), trigger)
		require.NoError(t, err)
	})
}
