package tenantconfig

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

type fakeLoader struct {
	configs map[uuid.UUID]care.TenantCareConfig
	calls   int
}

func (f *fakeLoader) LoadCareConfig(_ context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error) {
	f.calls++
	cfg, ok := f.configs[tenantID]
	if !ok {
		return care.TenantCareConfig{}, store.NewOpError("LoadCareConfig", store.ErrNotFound)
	}
	return cfg, nil
}

func TestCache_HitAvoidsSecondLoad(t *testing.T) {
	tenantID := uuid.New()
	loader := &fakeLoader{configs: map[uuid.UUID]care.TenantCareConfig{
		tenantID: {TenantID: tenantID, IsEnabled: true, WebhookURL: "https://hooks.example/t1"},
	}}
	c := New(loader, EnvDefaults{}, time.Minute, 10)

	_, err := c.Get(context.Background(), tenantID)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), tenantID)
	require.NoError(t, err)

	assert.Equal(t, 1, loader.calls)
}

func TestCache_MissFallsBackToEnvironment(t *testing.T) {
	tenantID := uuid.New()
	loader := &fakeLoader{configs: map[uuid.UUID]care.TenantCareConfig{}}
	c := New(loader, EnvDefaults{IsEnabled: true, WebhookBaseURL: "https://hooks.example"}, time.Minute, 10)

	cfg, err := c.Get(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, care.ConfigSourceEnvironment, cfg.Source)
}

func TestCache_ExpiredEntryReloads(t *testing.T) {
	tenantID := uuid.New()
	loader := &fakeLoader{configs: map[uuid.UUID]care.TenantCareConfig{
		tenantID: {TenantID: tenantID, IsEnabled: true, WebhookURL: "https://hooks.example/t1"},
	}}
	c := New(loader, EnvDefaults{}, time.Millisecond, 10)

	_, err := c.Get(context.Background(), tenantID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.Get(context.Background(), tenantID)
	require.NoError(t, err)

	assert.Equal(t, 2, loader.calls)
}

func TestCache_EvictsOldestWhenOverCapacity(t *testing.T) {
	loader := &fakeLoader{configs: map[uuid.UUID]care.TenantCareConfig{}}
	c := New(loader, EnvDefaults{}, time.Minute, 2)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		loader.configs[id] = care.TenantCareConfig{TenantID: id, WebhookURL: "https://x/" + id.String()}
		_, err := c.Get(context.Background(), id)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	// the first inserted tenant should have been evicted
	_, ok := c.lookup(ids[0])
	assert.False(t, ok)
}

func TestCache_ReinsertingExistingKeyMovesToNewest(t *testing.T) {
	loader := &fakeLoader{configs: map[uuid.UUID]care.TenantCareConfig{}}
	c := New(loader, EnvDefaults{}, time.Nanosecond, 2)

	a, b := uuid.New(), uuid.New()
	loader.configs[a] = care.TenantCareConfig{TenantID: a, WebhookURL: "https://x/a"}
	loader.configs[b] = care.TenantCareConfig{TenantID: b, WebhookURL: "https://x/b"}

	_, err := c.Get(context.Background(), a)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond) // force expiry so the second Get reinserts a
	_, err = c.Get(context.Background(), a)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), b)
	require.NoError(t, err)

	c.insert(uuid.New(), care.TenantCareConfig{})
	assert.Equal(t, 2, c.Len())
}

func TestCache_InvalidateAndClear(t *testing.T) {
	tenantID := uuid.New()
	loader := &fakeLoader{configs: map[uuid.UUID]care.TenantCareConfig{
		tenantID: {TenantID: tenantID, WebhookURL: "https://x/t"},
	}}
	c := New(loader, EnvDefaults{}, time.Minute, 10)

	_, err := c.Get(context.Background(), tenantID)
	require.NoError(t, err)
	c.Invalidate(tenantID)
	assert.Equal(t, 0, c.Len())

	_, err = c.Get(context.Background(), tenantID)
	require.NoError(t, err)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestResolveEffective_ComposesURLFromWorkflowID(t *testing.T) {
	cfg := care.TenantCareConfig{IsEnabled: true, WorkflowID: "wf-123"}
	resolved := resolveEffective(cfg, "https://hooks.example/")
	assert.Equal(t, "https://hooks.example/wf-123", resolved.WebhookURL)
	assert.True(t, resolved.IsEnabled)
}

func TestResolveEffective_DisabledWithoutWebhookURL(t *testing.T) {
	cfg := care.TenantCareConfig{IsEnabled: true}
	resolved := resolveEffective(cfg, "")
	assert.False(t, resolved.IsEnabled)
}
