// Package bus implements the tenant webhook bus (§6): an at-most-once,
// fire-and-forget internal notifier that resolves a tenant's configured
// workflow endpoint and delivers one event through the webhook trigger
// client.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/suggestion"
	"github.com/codeready-toolchain/care-orchestrator/pkg/webhook"
)

const eventTypeSuggestionCreated = "care.suggestion_created"

// ConfigResolver is the narrow subset of tenantconfig.Cache the bus needs.
type ConfigResolver interface {
	Get(ctx context.Context, tenantID uuid.UUID) (care.TenantCareConfig, error)
}

// Trigger is the subset of webhook.Client the bus needs.
type Trigger interface {
	TriggerCareWorkflow(ctx context.Context, req webhook.Request) webhook.Result
}

// Bus resolves each tenant's webhook destination and fires one webhook
// request. A config-resolution or delivery failure is returned as an error;
// the caller (suggestion.Gate) treats any returned error as "log and
// continue".
type Bus struct {
	configs ConfigResolver
	client  Trigger
	logger  *slog.Logger
}

var _ suggestion.WebhookEmitter = (*Bus)(nil)

// New constructs a Bus.
func New(configs ConfigResolver, client Trigger, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{configs: configs, client: client, logger: logger}
}

// EmitTenantWebhook resolves tenantID's configured endpoint and delivers
// eventName/payload as a webhook.Payload. A tenant with no configured or
// disabled webhook is a silent no-op, not an error.
func (b *Bus) EmitTenantWebhook(ctx context.Context, tenantID uuid.UUID, eventName string, payload map[string]any) error {
	cfg, err := b.configs.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("resolve tenant config: %w", err)
	}
	if !cfg.IsEnabled || cfg.WebhookURL == "" {
		b.logger.Debug("tenant webhook bus: skipping disabled or unconfigured tenant", "tenant_id", tenantID, "event", eventName)
		return nil
	}

	result := b.client.TriggerCareWorkflow(ctx, webhook.Request{
		URL:       cfg.WebhookURL,
		Secret:    cfg.WebhookSecret,
		TimeoutMS: cfg.WebhookTimeoutMS,
		Retries:   cfg.WebhookMaxRetries,
		Payload: webhook.Payload{
			EventID:  uuid.NewString(),
			Type:     eventTypeFor(eventName),
			TS:       time.Now().UTC().Format(time.RFC3339),
			TenantID: tenantID.String(),
			Entity:   entityFromPayload(payload),
			Body:     payload,
		},
	})
	if !result.Success {
		return fmt.Errorf("webhook delivery failed after %d attempt(s): %s", result.Attempts, result.Error)
	}
	return nil
}

// eventTypeFor maps the bus's internal event names to the bit-exact wire
// "type" values §6 defines. Unrecognized event names pass through unchanged
// so new internal events aren't silently miscategorized.
func eventTypeFor(eventName string) string {
	switch eventName {
	case "ai.suggestion.generated":
		return eventTypeSuggestionCreated
	default:
		return eventName
	}
}

func entityFromPayload(payload map[string]any) webhook.PayloadEntity {
	entity := webhook.PayloadEntity{}
	if v, ok := payload["entity_type"]; ok {
		if s, ok := v.(care.EntityType); ok {
			entity.Type = string(s)
		} else if s, ok := v.(string); ok {
			entity.Type = s
		}
	}
	if v, ok := payload["entity_id"]; ok {
		if id, ok := v.(uuid.UUID); ok {
			entity.ID = id.String()
		} else if s, ok := v.(string); ok {
			entity.ID = s
		}
	}
	return entity
}
