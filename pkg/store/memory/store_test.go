package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store"
)

func TestUpsertCareState_CreatesThenUpdates(t *testing.T) {
	s := New()
	ref := care.EntityRef{TenantID: uuid.New(), EntityType: care.EntityTypeLead, EntityID: uuid.New()}
	ctx := context.Background()

	rec, err := s.UpsertCareState(ctx, ref, care.CareStateAware, time.Now())
	require.NoError(t, err)
	assert.Equal(t, care.CareStateAware, rec.CareState)

	rec, err = s.UpsertCareState(ctx, ref, care.CareStateEngaged, time.Now())
	require.NoError(t, err)
	assert.Equal(t, care.CareStateEngaged, rec.CareState)

	got, err := s.GetCareState(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, care.CareStateEngaged, got.CareState)
}

func TestGetCareState_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetCareState(context.Background(), care.EntityRef{TenantID: uuid.New(), EntityType: care.EntityTypeLead, EntityID: uuid.New()})
	assert.True(t, store.IsNotFound(err))
}

func TestInsertSuggestion_DuplicatePendingRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	ref := care.EntityRef{TenantID: uuid.New(), EntityType: care.EntityTypeLead, EntityID: uuid.New()}
	payload := store.InsertSuggestionPayload{
		EntityRef: ref,
		TriggerID: care.TriggerTypeLeadStagnant,
		Status:    care.SuggestionStatusPending,
		Outcome:   care.OutcomeSuggestionCreated,
	}

	id, err := s.InsertSuggestion(ctx, payload)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = s.InsertSuggestion(ctx, payload)
	assert.True(t, store.IsConstraintViolation(err))
}

func TestQuerySuggestions_FiltersByTenantAndStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()
	ref := care.EntityRef{TenantID: tenant, EntityType: care.EntityTypeLead, EntityID: uuid.New()}

	_, err := s.InsertSuggestion(ctx, store.InsertSuggestionPayload{
		EntityRef: ref, TriggerID: care.TriggerTypeLeadStagnant, Status: care.SuggestionStatusPending,
	})
	require.NoError(t, err)

	results, err := s.QuerySuggestions(ctx, store.QuerySuggestionsFilter{TenantID: tenant, Status: care.SuggestionStatusPending, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.QuerySuggestions(ctx, store.QuerySuggestionsFilter{TenantID: uuid.New(), Status: care.SuggestionStatusPending, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}
