package policygate

import "regexp"

// Hard prohibitions are unconditional: matched text blocks the action
// regardless of origin (§4.C). Each is an alternation of loosely-worded
// patterns rather than exact phrases, since this class of text varies more
// than the escalation detector's lexicon.
var hardProhibitionPatterns = mustCompileAll([]string{
	`(?i)\bi am (a )?(human|real person)\b`,
	`(?i)\bthis is not an? (ai|bot|automated)\b`,
	`(?i)\bi (guarantee|promise) (you )?(that )?\b`,
	`(?i)\bwe (agree to|will) (sign|honor|commit to)\b`,
	`(?i)\bthis constitutes a binding\b`,
	`(?i)\blegally binding\b`,
	`(?i)\b(final )?price is \$?\d`,
	`(?i)\bi can offer you \$?\d`,
	`(?i)\bbest and final (price|offer)\b`,
	`(?i)\bdelete (all )?(my |our )?data\b`,
	`(?i)\bright to be forgotten\b`,
	`(?i)\bgdpr (erasure|deletion) request\b`,
	`(?i)\bwe (will|are going to) sue\b`,
	`(?i)\bspeak(ing)? to (my|our) (lawyer|attorney)\b`,
	`(?i)\blegal action\b`,
})

// Autonomous prohibitions additionally escalate care_autonomous-origin actions
// (§4.C): strong guarantees, negotiation language, urgency markers.
var autonomousProhibitionPatterns = mustCompileAll([]string{
	`(?i)\b(guarantee|guaranteed|promise you)\b`,
	`(?i)\b(negotiate|counter-?offer|meet you halfway)\b`,
	`(?i)\b(act now|limited time|offer expires|today only)\b`,
	`(?i)\bwe will (waive|discount|reduce)\b`,
})

// High-risk patterns additionally escalate user_directed-origin actions
// (§4.C): contract/agreement references and dollar amounts ≥ 5 digits.
var highRiskPatterns = mustCompileAll([]string{
	`(?i)\b(contract|agreement|msa|sow)\b`,
	`\$\s?\d{5,}`,
})

func mustCompileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

func anyMatch(text string, patterns []*regexp.Regexp) bool {
	if text == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
