// Package policygate implements the pure policy-gate classifier (§4.C): a
// decision table over action origin, proposed action type, and text, backed
// by an embedded Rego policy evaluated through Open Policy Agent's Go SDK.
// Go pre-computes the phrase-match flags (regexp-based); the Rego module
// owns the priority-ordered decision logic so the policy can be audited and
// changed independently of the Go binary.
package policygate

import (
	"context"
	"embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed rego/policy.rego
var policyFS embed.FS

// ActionOrigin mirrors escalation.ActionOrigin but is declared independently
// since the policy gate is specified as a standalone pure function (§4.C).
type ActionOrigin string

const (
	ActionOriginUserDirected   ActionOrigin = "user_directed"
	ActionOriginCareAutonomous ActionOrigin = "care_autonomous"
)

// ActionType is the closed set of proposed action kinds.
type ActionType string

const (
	ActionTypeMessage  ActionType = "message"
	ActionTypeMeeting  ActionType = "meeting"
	ActionTypeWorkflow ActionType = "workflow"
	ActionTypeTask     ActionType = "task"
	ActionTypeNote     ActionType = "note"
	ActionTypeUpdate   ActionType = "update"
	ActionTypeFollowUp ActionType = "follow_up"
)

// IsValid reports whether t is one of the closed action types.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionTypeMessage, ActionTypeMeeting, ActionTypeWorkflow, ActionTypeTask,
		ActionTypeNote, ActionTypeUpdate, ActionTypeFollowUp:
		return true
	default:
		return false
	}
}

// GateResult is the closed set of policy-gate verdicts.
type GateResult string

const (
	GateResultAllowed   GateResult = "allowed"
	GateResultEscalated GateResult = "escalated"
	GateResultBlocked   GateResult = "blocked"
)

// Input is the gate's sole argument.
type Input struct {
	ActionOrigin       ActionOrigin
	ProposedActionType ActionType
	Text               string
	Meta               map[string]any
}

// Output is the gate's verdict.
type Output struct {
	PolicyGateResult GateResult
	Escalate         bool
	Reasons          []string
}

// Gate evaluates Input against the embedded Rego policy. It is constructed
// once at start-up (policy compilation happens once; evaluation per call is
// cheap) and is safe for concurrent use.
type Gate struct {
	query rego.PreparedEvalQuery
}

// NewGate compiles the embedded policy module and prepares it for repeated
// evaluation.
func NewGate(ctx context.Context) (*Gate, error) {
	src, err := policyFS.ReadFile("rego/policy.rego")
	if err != nil {
		return nil, fmt.Errorf("policygate: read embedded policy: %w", err)
	}

	query, err := rego.New(
		rego.Query("data.carepolicy.decision"),
		rego.Module("policy.rego", string(src)),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policygate: prepare policy: %w", err)
	}

	return &Gate{query: query}, nil
}

// Evaluate runs the pure classification described in §4.C.
func (g *Gate) Evaluate(ctx context.Context, in Input) (Output, error) {
	hardMatched := anyMatch(in.Text, hardProhibitionPatterns)
	autonomousMatched := anyMatch(in.Text, autonomousProhibitionPatterns)
	highRiskMatched := anyMatch(in.Text, highRiskPatterns)

	regoInput := map[string]any{
		"action_origin":              string(in.ActionOrigin),
		"proposed_action_type":       string(in.ProposedActionType),
		"hard_prohibition_matched":   hardMatched,
		"autonomous_prohibition_matched": autonomousMatched,
		"high_risk_matched":          highRiskMatched,
	}

	results, err := g.query.Eval(ctx, rego.EvalInput(regoInput))
	if err != nil {
		return Output{}, fmt.Errorf("policygate: evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Output{}, fmt.Errorf("policygate: policy produced no decision")
	}

	decision, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return Output{}, fmt.Errorf("policygate: unexpected decision type %T", results[0].Expressions[0].Value)
	}

	result := GateResult(decision)
	reasons := reasonsFor(result, hardMatched, autonomousMatched, highRiskMatched, in)

	return Output{
		PolicyGateResult: result,
		Escalate:         result == GateResultEscalated,
		Reasons:          reasons,
	}, nil
}

// reasonsFor reconstructs the human-readable rationale for a decision. The
// Rego policy itself returns only the decision string; the reasons list is
// assembled here from the same flags passed as its input, so Evaluate
// remains the single source of truth.
func reasonsFor(result GateResult, hard, autonomous, highRisk bool, in Input) []string {
	switch {
	case in.ActionOrigin == "":
		return []string{"missing action_origin"}
	case in.ProposedActionType == "":
		return []string{"missing proposed_action_type"}
	case result == GateResultBlocked && hard:
		return []string{"text matched a hard prohibition"}
	case result == GateResultEscalated && in.ActionOrigin == ActionOriginCareAutonomous && autonomous:
		return []string{"text matched an autonomous-origin prohibition"}
	case result == GateResultEscalated && in.ActionOrigin == ActionOriginCareAutonomous:
		return []string{fmt.Sprintf("action type %q is outside the autonomous low-risk set", in.ProposedActionType)}
	case result == GateResultEscalated && in.ActionOrigin == ActionOriginUserDirected && highRisk:
		return []string{"text matched a high-risk pattern for user-directed actions"}
	default:
		return []string{"no prohibition or escalation pattern matched"}
	}
}
