// Package audit implements the Audit Emitter (§6): one structured record
// per suggestion-gate invocation, carrying event_type=ACTION_OUTCOME and
// meta.outcome_type.
package audit

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/care-orchestrator/pkg/suggestion"
)

const eventTypeActionOutcome = "ACTION_OUTCOME"

// SlogEmitter records audit events as structured slog entries. It never
// returns an error itself — the spec's "audit emitter failures must not
// propagate" invariant is the caller's (suggestion.Gate's) responsibility,
// but this implementation has no failure mode of its own to surface.
type SlogEmitter struct {
	logger *slog.Logger
}

var _ suggestion.AuditEmitter = (*SlogEmitter)(nil)

// NewSlogEmitter constructs a SlogEmitter. A nil logger falls back to
// slog.Default().
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// EmitCareAudit records one ACTION_OUTCOME event.
func (s *SlogEmitter) EmitCareAudit(_ context.Context, event suggestion.AuditEvent) error {
	attrs := []any{
		"event_type", eventTypeActionOutcome,
		"tenant_id", event.TenantID,
		"trigger_id", event.TriggerID,
		"record_type", event.RecordType,
		"record_id", event.RecordID,
		"outcome_type", event.Outcome,
	}
	if event.SuggestionID != nil {
		attrs = append(attrs, "suggestion_id", *event.SuggestionID)
	}
	if event.Detail != "" {
		attrs = append(attrs, "detail", event.Detail)
	}
	s.logger.Info("care audit", attrs...)
	return nil
}
