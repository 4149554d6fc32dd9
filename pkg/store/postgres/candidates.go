package postgres

import "github.com/codeready-toolchain/care-orchestrator/pkg/care"

// triggerCandidateQueries maps each of the 8 spec-mandated TriggerTypes to
// the SQL that finds CRM records due for that trigger. Each query must
// return (record_id, entity_type, context jsonb) for the given tenant. Real
// CRM record tables (leads, opportunities, accounts, contacts, activities)
// live outside this schema; these queries assume they are reachable in the
// same database and exposed through thin views the CRM integration owns,
// already filtered to rows matching the trigger's condition (§4.G's
// condition table) — this store only joins on tenant_id and shapes the
// result, it does not re-derive the business predicate.
var triggerCandidateQueries = map[care.TriggerType]string{
	care.TriggerTypeLeadStagnant: `
		SELECT lead_id, 'lead', jsonb_build_object('last_inbound_at', last_inbound_at, 'silence_days', silence_days)
		FROM care_lead_signals WHERE tenant_id = $1 AND silence_days >= 0`,
	care.TriggerTypeDealDecay: `
		SELECT opportunity_id, 'opportunity', jsonb_build_object('last_inbound_at', last_inbound_at, 'silence_days', silence_days, 'engagement_score', engagement_score)
		FROM care_opportunity_signals WHERE tenant_id = $1`,
	care.TriggerTypeDealRegression: `
		SELECT opportunity_id, 'opportunity', jsonb_build_object('previous_stage', previous_stage, 'current_stage', current_stage, 'regressed_at', regressed_at)
		FROM care_opportunity_regression_signals WHERE tenant_id = $1`,
	care.TriggerTypeAccountRisk: `
		SELECT account_id, 'account', jsonb_build_object('risk_level', risk_level, 'risk_reason', risk_reason)
		FROM care_account_signals WHERE tenant_id = $1`,
	care.TriggerTypeActivityOverdue: `
		SELECT activity_id, 'activity', jsonb_build_object('due_at', due_at, 'status', status)
		FROM care_activity_overdue_signals WHERE tenant_id = $1`,
	care.TriggerTypeContactInactive: `
		SELECT contact_id, 'contact', jsonb_build_object('last_activity_at', last_activity_at, 'inactive_days', inactive_days)
		FROM care_contact_signals WHERE tenant_id = $1`,
	care.TriggerTypeOpportunityHot: `
		SELECT opportunity_id, 'opportunity', jsonb_build_object('probability', probability, 'expected_close_at', expected_close_at)
		FROM care_opportunity_hot_signals WHERE tenant_id = $1`,
	care.TriggerTypeFollowupNeeded: `
		SELECT activity_id, 'activity', jsonb_build_object('text', body_text, 'sentiment', sentiment_label, 'sentiment_score', sentiment_score, 'channel', channel)
		FROM care_activity_signals WHERE tenant_id = $1 AND processed_at IS NULL`,
}
