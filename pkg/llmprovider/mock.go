package llmprovider

import (
	"context"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/suggestion"
)

// MockProvider is a deterministic suggestion.Generator for tests and local
// development without a configured Anthropic API key: it always proposes
// the first available tool with empty arguments, or returns nil when asked
// to simulate generation_failed.
type MockProvider struct {
	Fail bool
}

var _ suggestion.Generator = (*MockProvider)(nil)

// Generate implements suggestion.Generator.
func (m *MockProvider) Generate(_ context.Context, in suggestion.GenerationInput) (*suggestion.GenerationOutput, error) {
	if m.Fail || len(in.Tools) == 0 {
		return nil, nil
	}
	return &suggestion.GenerationOutput{
		Action: care.SuggestedAction{
			ToolName: in.Tools[0].Name,
			ToolArgs: map[string]any{},
		},
	}, nil
}
