package slack

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/suggestion"
)

// TenantChannelResolver looks up the Slack channel configured for a tenant.
// An empty channel means the tenant has no Slack notifications configured.
type TenantChannelResolver interface {
	ChannelForTenant(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// StaticChannelResolver resolves every tenant to the same channel. It is the
// fallback used when no per-tenant Slack-channel store exists yet — the
// same environment-default discipline tenantconfig.Cache applies when a
// tenant has no row of its own.
type StaticChannelResolver struct {
	Channel string
}

func (r StaticChannelResolver) ChannelForTenant(context.Context, uuid.UUID) (string, error) {
	return r.Channel, nil
}

// Service notifies a tenant's Slack channel when the Suggestion Gate creates
// a priority=critical suggestion. Nil-safe: all methods are no-ops when the
// service itself is nil, matching the teacher's fail-open discipline.
type Service struct {
	client       *Client
	channels     TenantChannelResolver
	dashboardURL string
	logger       *slog.Logger
}

var _ suggestion.CriticalNotifier = (*Service)(nil)

// NewService constructs a Service. Returns nil if token is empty, so
// callers can wire NewService(token, ...) directly into suggestion.New
// without a separate nil check.
func NewService(token string, channels TenantChannelResolver, dashboardURL string) *Service {
	if token == "" {
		return nil
	}
	return &Service{
		client:       NewClient(token),
		channels:     channels,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "care-slack-service"),
	}
}

// NotifyCriticalSuggestion posts a best-effort Slack message for a
// priority=critical suggestion. Errors are logged, never returned — this
// must never be the reason createSuggestionIfNew fails to return an id.
func (s *Service) NotifyCriticalSuggestion(ctx context.Context, tenantID uuid.UUID, sug care.Suggestion) {
	if s == nil {
		return
	}
	if sug.Priority != care.TriggerPriorityCritical {
		return
	}

	channel, err := s.channels.ChannelForTenant(ctx, tenantID)
	if err != nil {
		s.logger.Warn("failed to resolve tenant Slack channel", "tenant_id", tenantID, "error", err)
		return
	}
	if channel == "" {
		return
	}

	blocks := BuildCriticalSuggestionMessage(tenantID.String(), s.dashboardURL, sug)
	if err := s.client.PostMessage(ctx, channel, blocks, 5*time.Second); err != nil {
		s.logger.Error("failed to send critical suggestion Slack notification",
			"tenant_id", tenantID, "suggestion_id", sug.ID, "error", err)
	}
}
