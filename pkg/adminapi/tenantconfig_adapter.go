package adminapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
)

// configGetter is the subset of *tenantconfig.Cache this package needs,
// named narrowly so tests can substitute a fake.
type configGetter interface {
	Get(ctx context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error)
}

// TenantConfigAdapter adapts a configGetter (in practice *tenantconfig.Cache)
// to the TenantStatusSource the admin server renders as JSON. The cache
// itself has no notion of "not found" versus "environment fallback" — any
// resolvable tenant ID always returns a config, so found is always true
// here; a real 404 case does not exist for this debug endpoint by design.
type TenantConfigAdapter struct {
	cache configGetter
}

// NewTenantConfigAdapter wraps cache for use as a TenantStatusSource.
func NewTenantConfigAdapter(cache configGetter) *TenantConfigAdapter {
	return &TenantConfigAdapter{cache: cache}
}

func (a *TenantConfigAdapter) Lookup(ctx context.Context, tenantID uuid.UUID) (map[string]any, bool, error) {
	cfg, err := a.cache.Get(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}

	return map[string]any{
		"tenant_id":           cfg.TenantID,
		"workflow_id":         cfg.WorkflowID,
		"is_enabled":          cfg.IsEnabled,
		"state_write_enabled": cfg.StateWriteEnabled,
		"shadow_mode":         cfg.ShadowMode,
		"webhook_timeout_ms":  cfg.WebhookTimeoutMS,
		"webhook_max_retries": cfg.WebhookMaxRetries,
		"webhook_configured":  cfg.WebhookURL != "",
		"source":              cfg.Source,
	}, true, nil
}
