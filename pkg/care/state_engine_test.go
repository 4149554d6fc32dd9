package care

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposeTransition_EvaluatingToCommitted(t *testing.T) {
	now := time.Now()
	proposal := ProposeTransition(CareStateEvaluating, CareSignals{CommitmentRecorded: true}, DefaultThresholds(), now)
	require.NotNil(t, proposal)
	assert.Equal(t, CareStateCommitted, proposal.ToState)
	assert.Contains(t, proposal.Reason, "commitment")
}

func TestProposeTransition_ExplicitRejectionWins(t *testing.T) {
	now := time.Now()
	proposal := ProposeTransition(CareStateEngaged, CareSignals{ExplicitRejection: true, ProposalSent: true}, DefaultThresholds(), now)
	require.NotNil(t, proposal)
	assert.Equal(t, CareStateLost, proposal.ToState)
}

func TestProposeTransition_SilenceBoundary(t *testing.T) {
	now := time.Now()
	th := DefaultThresholds()

	justUnder := th.AtRiskSilenceDays - 1
	p := ProposeTransition(CareStateEngaged, CareSignals{SilenceDays: &justUnder}, th, now)
	assert.Nil(t, p, "silence one day under threshold must not transition")

	atThreshold := th.AtRiskSilenceDays
	p = ProposeTransition(CareStateEngaged, CareSignals{SilenceDays: &atThreshold}, th, now)
	require.NotNil(t, p, "silence at threshold must transition to at_risk")
	assert.Equal(t, CareStateAtRisk, p.ToState)
}

func TestProposeTransition_NoSignalsNoProposal(t *testing.T) {
	p := ProposeTransition(CareStateUnaware, CareSignals{}, DefaultThresholds(), time.Now())
	assert.Nil(t, p)
}

func TestProposeTransition_SilenceDaysOverriddenByLastInbound(t *testing.T) {
	now := time.Now()
	stale := 40
	recent := now.Add(-2 * 24 * time.Hour)
	p := ProposeTransition(CareStateEngaged, CareSignals{SilenceDays: &stale, LastInboundAt: &recent}, DefaultThresholds(), now)
	assert.Nil(t, p, "recent inbound should override stale caller-provided silence_days and suppress at_risk")
}

type fakeStateStore struct {
	upserted []CareStateRecord
	appended []CareHistoryEvent
	failUpsert bool
}

func (f *fakeStateStore) UpsertCareState(ctx context.Context, ref EntityRef, state CareState, now time.Time) (CareStateRecord, error) {
	if f.failUpsert {
		return CareStateRecord{}, assert.AnError
	}
	rec := CareStateRecord{EntityRef: ref, CareState: state, LastSignalAt: now, UpdatedAt: now}
	f.upserted = append(f.upserted, rec)
	return rec, nil
}

func (f *fakeStateStore) AppendCareHistory(ctx context.Context, event CareHistoryEvent) error {
	f.appended = append(f.appended, event)
	return nil
}

func TestApplyTransition_RejectsEmptyReason(t *testing.T) {
	store := &fakeStateStore{}
	ref := EntityRef{TenantID: uuid.New(), EntityType: EntityTypeLead, EntityID: uuid.New()}
	proposal := &TransitionProposal{FromState: CareStateAware, ToState: CareStateEngaged, Reason: "   "}

	err := ApplyTransition(context.Background(), ref, proposal, store, SystemActor, WriteMode{StateWriteEnabled: true}, time.Now())
	require.Error(t, err)
	assert.Empty(t, store.appended)
}

func TestApplyTransition_ShadowModeSkipsWrites(t *testing.T) {
	store := &fakeStateStore{}
	ref := EntityRef{TenantID: uuid.New(), EntityType: EntityTypeLead, EntityID: uuid.New()}
	proposal := &TransitionProposal{FromState: CareStateAware, ToState: CareStateEngaged, Reason: "bidirectional exchange observed"}

	err := ApplyTransition(context.Background(), ref, proposal, store, SystemActor, WriteMode{StateWriteEnabled: true, ShadowMode: true}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, store.upserted)
	assert.Empty(t, store.appended)
}

func TestApplyTransition_PersistsInOrder(t *testing.T) {
	store := &fakeStateStore{}
	ref := EntityRef{TenantID: uuid.New(), EntityType: EntityTypeLead, EntityID: uuid.New()}
	proposal := &TransitionProposal{FromState: CareStateAware, ToState: CareStateEngaged, Reason: "bidirectional exchange observed"}

	err := ApplyTransition(context.Background(), ref, proposal, store, SystemActor, WriteMode{StateWriteEnabled: true}, time.Now())
	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
	require.Len(t, store.appended, 1)
	assert.Equal(t, HistoryEventStateApplied, store.appended[0].EventType)
	assert.NotEmpty(t, store.appended[0].Reason)
}

func TestApplyTransition_RejectsIdentityTransition(t *testing.T) {
	store := &fakeStateStore{}
	ref := EntityRef{TenantID: uuid.New(), EntityType: EntityTypeLead, EntityID: uuid.New()}
	proposal := &TransitionProposal{FromState: CareStateAware, ToState: CareStateAware, Reason: "no-op"}

	err := ApplyTransition(context.Background(), ref, proposal, store, SystemActor, WriteMode{StateWriteEnabled: true}, time.Now())
	assert.ErrorIs(t, err, ErrIdentityTransition)
	assert.Empty(t, store.appended)
}
