package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/metrics"
)

type fakeConfigGetter struct {
	cfg care.TenantCareConfig
	err error
}

func (f *fakeConfigGetter) Get(context.Context, uuid.UUID) (care.TenantCareConfig, error) {
	return f.cfg, f.err
}

type fakeTriggerStatus struct {
	orphaned []uuid.UUID
}

func (f *fakeTriggerStatus) OrphanedLeases() []uuid.UUID { return f.orphaned }

func TestHandleHealthz_NoDatabaseConfigured(t *testing.T) {
	s := NewServer(nil, nil, nil, "test", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"database":"not_configured"`)
}

func TestHandleTenantConfig_InvalidUUID(t *testing.T) {
	s := NewServer(nil, nil, nil, "test", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/tenants/not-a-uuid/config", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTenantConfig_ResolverNotConfigured(t *testing.T) {
	s := NewServer(nil, nil, nil, "test", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/tenants/"+uuid.New().String()+"/config", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleTenantConfig_ReturnsResolvedConfig(t *testing.T) {
	tenantID := uuid.New()
	getter := &fakeConfigGetter{cfg: care.TenantCareConfig{
		TenantID:   tenantID,
		WorkflowID: "wf-123",
		IsEnabled:  true,
		Source:     care.ConfigSourceDatabase,
	}}
	adapter := NewTenantConfigAdapter(getter)
	s := NewServer(nil, adapter, nil, "test", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/tenants/"+tenantID.String()+"/config", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wf-123")
	assert.Contains(t, rec.Body.String(), `"is_enabled":true`)
}

type fakeInvalidator struct {
	published uuid.UUID
	err       error
}

func (f *fakeInvalidator) Publish(_ context.Context, tenantID uuid.UUID) error {
	f.published = tenantID
	return f.err
}

func TestHandleInvalidateTenant_NotConfiguredReturns503(t *testing.T) {
	s := NewServer(nil, nil, nil, "test", nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/debug/tenants/"+uuid.New().String()+"/invalidate", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleInvalidateTenant_InvalidUUID(t *testing.T) {
	inv := &fakeInvalidator{}
	s := NewServer(nil, nil, nil, "test", nil, inv)

	req := httptest.NewRequest(http.MethodPost, "/debug/tenants/not-a-uuid/invalidate", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleInvalidateTenant_PublishesAndReturns200(t *testing.T) {
	tenantID := uuid.New()
	inv := &fakeInvalidator{}
	s := NewServer(nil, nil, nil, "test", nil, inv)

	req := httptest.NewRequest(http.MethodPost, "/debug/tenants/"+tenantID.String()+"/invalidate", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenantID, inv.published)
}

func TestHandleTriggerStatus_NoneConfiguredReturnsEmptyList(t *testing.T) {
	s := NewServer(nil, nil, nil, "test", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/triggers/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orphaned_leases":[]`)
}

func TestHandleTriggerStatus_ReportsOrphanedLeases(t *testing.T) {
	tenantID := uuid.New()
	s := NewServer(nil, nil, &fakeTriggerStatus{orphaned: []uuid.UUID{tenantID}}, "test", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/triggers/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), tenantID.String())
}

func TestHandleMetrics_ServesPrometheusFormat(t *testing.T) {
	s := NewServer(nil, nil, nil, "test", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMetrics_ServesWiredRegistryNotDefaultGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	careMetrics := metrics.NewRegistry(reg)
	careMetrics.SuggestionOutcomes.WithLabelValues("suggestion_created").Inc()

	s := NewServer(nil, nil, nil, "test", reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "care_suggestion_outcomes_total")
}
