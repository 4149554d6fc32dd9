// Package noop provides nil-object implementations of the suggestion gate's
// optional collaborators, for callers that run without a webhook bus, audit
// sink, or critical-notification channel configured.
package noop

import (
	"context"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/suggestion"
)

// Webhook discards every EmitTenantWebhook call.
type Webhook struct{}

var _ suggestion.WebhookEmitter = Webhook{}

func (Webhook) EmitTenantWebhook(context.Context, uuid.UUID, string, map[string]any) error {
	return nil
}

// Audit discards every EmitCareAudit call.
type Audit struct{}

var _ suggestion.AuditEmitter = Audit{}

func (Audit) EmitCareAudit(context.Context, suggestion.AuditEvent) error {
	return nil
}

// Notifier discards every NotifyCriticalSuggestion call.
type Notifier struct{}

var _ suggestion.CriticalNotifier = Notifier{}

func (Notifier) NotifyCriticalSuggestion(context.Context, uuid.UUID, care.Suggestion) {}
