// Package escalation implements the pure escalation detector (§4.B): a
// two-phase classifier turning a textual/sentiment signal into a typed set
// of escalation reasons and a confidence level.
package escalation

import (
	"github.com/codeready-toolchain/care-orchestrator/pkg/signal"
)

// Channel is the communication channel a signal arrived on.
type Channel string

const (
	ChannelCall  Channel = "call"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelOther Channel = "other"
)

// ActionOrigin distinguishes a human-directed action from one the CARE core
// proposed autonomously. Recorded in the result's meta but never used for
// gating within the detector itself (gating is the policy gate's job).
type ActionOrigin string

const (
	ActionOriginUserDirected   ActionOrigin = "user_directed"
	ActionOriginCareAutonomous ActionOrigin = "care_autonomous"
)

// Reason is a member of the closed escalation-reason set.
type Reason string

const (
	ReasonObjection          Reason = "objection"
	ReasonPricingOrContract  Reason = "pricing_or_contract"
	ReasonNegativeSentiment  Reason = "negative_sentiment"
	ReasonComplianceSensitive Reason = "compliance_sensitive"
	ReasonUnknownHighRisk    Reason = "unknown_high_risk"
)

// Confidence is the classifier's confidence in its own reasons set.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Input is the detector's sole argument. Text, Sentiment, Channel, and
// ActionOrigin are all optional — the zero value means "absent".
type Input struct {
	Text           string
	Sentiment      string   // "positive" | "neutral" | "negative", or empty
	SentimentScore *float64 // numeric sentiment, mutually optional with Sentiment
	Channel        Channel
	ActionOrigin   ActionOrigin
	Meta           map[string]any
}

// Result is the detector's output: {escalate, reasons, confidence, meta}.
type Result struct {
	Escalate   bool
	Reasons    []Reason
	Confidence Confidence
	Meta       map[string]any
}

// hasReason reports whether reasons contains r.
func hasReason(reasons []Reason, r Reason) bool {
	for _, existing := range reasons {
		if existing == r {
			return true
		}
	}
	return false
}

// DetectFromAny runs the detector against an untyped value, as arrives at a
// JSON/webhook boundary before the caller has validated it into an Input.
// A value that is not a map (i.e. "not an object") short-circuits to the
// malformed-input result mandated by §4.B Phase 1.
func DetectFromAny(v any) Result {
	m, ok := v.(map[string]any)
	if !ok {
		return Result{
			Escalate:   true,
			Reasons:    []Reason{ReasonUnknownHighRisk},
			Confidence: ConfidenceLow,
			Meta:       map[string]any{"error": "malformed_input"},
		}
	}

	in := Input{}
	if text, ok := m["text"].(string); ok {
		in.Text = text
	}
	if sentiment, ok := m["sentiment"].(string); ok {
		in.Sentiment = sentiment
	}
	if score, ok := m["sentiment"].(float64); ok {
		in.SentimentScore = &score
	}
	if channel, ok := m["channel"].(string); ok {
		in.Channel = Channel(channel)
	}
	if origin, ok := m["action_origin"].(string); ok {
		in.ActionOrigin = ActionOrigin(origin)
	}
	if meta, ok := m["meta"].(map[string]any); ok {
		in.Meta = meta
	}
	return Detect(in)
}

// Detect runs the two-phase algorithm in §4.B. Phase order is contractual:
// objection, then pricing/contract, then compliance-sensitive, then (only if
// none of those fired) high-risk-ambiguous; sentiment is evaluated last.
func Detect(in Input) Result {
	meta := map[string]any{
		"channel":       in.Channel,
		"action_origin": in.ActionOrigin,
	}
	for k, v := range in.Meta {
		meta[k] = v
	}

	var reasons []Reason
	matchCount := 0
	var matchedPhrases []string

	objection := signal.ContainsAnyPhrase(in.Text, signal.ObjectionPhrases())
	if objection.Matched {
		reasons = append(reasons, ReasonObjection)
		matchCount += len(objection.Matches)
		matchedPhrases = append(matchedPhrases, objection.Matches...)
	}

	pricing := signal.ContainsAnyPhrase(in.Text, signal.PricingOrContractPhrases())
	if pricing.Matched {
		reasons = append(reasons, ReasonPricingOrContract)
		matchCount += len(pricing.Matches)
		matchedPhrases = append(matchedPhrases, pricing.Matches...)
	}

	compliance := signal.ContainsAnyPhrase(in.Text, signal.ComplianceSensitivePhrases())
	if compliance.Matched {
		reasons = append(reasons, ReasonComplianceSensitive)
		matchCount += len(compliance.Matches)
		matchedPhrases = append(matchedPhrases, compliance.Matches...)
	}

	if !objection.Matched && !pricing.Matched && !compliance.Matched {
		highRisk := signal.ContainsAnyPhrase(in.Text, signal.HighRiskAmbiguousPhrases())
		if highRisk.Matched {
			reasons = append(reasons, ReasonUnknownHighRisk)
			matchCount += len(highRisk.Matches)
			matchedPhrases = append(matchedPhrases, highRisk.Matches...)
		}
	}

	negative := isNegativeSentiment(in)
	if negative {
		reasons = append(reasons, ReasonNegativeSentiment)
	}

	meta["match_count"] = matchCount
	if len(matchedPhrases) > 0 {
		meta["matched_phrases"] = matchedPhrases
	}

	confidence := classifyConfidence(reasons, pricing, negative)

	return Result{
		Escalate:   len(reasons) > 0,
		Reasons:    reasons,
		Confidence: confidence,
		Meta:       meta,
	}
}

func isNegativeSentiment(in Input) bool {
	if in.Sentiment == "negative" {
		return true
	}
	if in.SentimentScore != nil && *in.SentimentScore < -0.3 {
		return true
	}
	return false
}

// classifyConfidence implements Phase 2 of §4.B in strict priority order.
func classifyConfidence(reasons []Reason, pricing signal.MatchResult, negative bool) Confidence {
	if len(reasons) == 0 {
		return ConfidenceHigh
	}
	if hasReason(reasons, ReasonObjection) || hasReason(reasons, ReasonComplianceSensitive) {
		return ConfidenceHigh
	}
	onlyUnknownHighRisk := len(reasons) == 1 && reasons[0] == ReasonUnknownHighRisk
	if onlyUnknownHighRisk {
		return ConfidenceLow
	}
	if hasReason(reasons, ReasonPricingOrContract) && len(pricing.Matches) > 2 {
		return ConfidenceHigh
	}
	onlyPricing := len(reasons) == 1 && reasons[0] == ReasonPricingOrContract
	if onlyPricing {
		return ConfidenceMedium
	}
	onlyNegative := len(reasons) == 1 && reasons[0] == ReasonNegativeSentiment
	if onlyNegative {
		return ConfidenceMedium
	}
	if hasReason(reasons, ReasonPricingOrContract) && negative {
		return ConfidenceMedium
	}
	return ConfidenceMedium
}
