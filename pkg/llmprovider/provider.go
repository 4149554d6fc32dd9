// Package llmprovider adapts the Anthropic API to the Suggestion Gate's
// Generator interface (§6: generate(prompt, tools, budget_caps)), following
// the teacher's thin-client-wrapper shape (pkg/llm.Client): a struct holding
// a configured SDK client plus model/token settings read from the
// environment, with one narrow entry point and context-bounded calls.
package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codeready-toolchain/care-orchestrator/pkg/budget"
	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/suggestion"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = int64(1024)
)

// Client is a thin wrapper around the Anthropic SDK client, configured once
// at startup from the environment.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
}

var _ suggestion.Generator = (*Client)(nil)

// NewClient constructs a Client. apiKey empty means "read from
// ANTHROPIC_API_KEY", matching the SDK's own default option resolution.
func NewClient(apiKey string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := os.Getenv("CARE_LLM_MODEL")
	if model == "" {
		model = defaultModel
	}

	maxTokens := defaultMaxTokens
	if v := os.Getenv("CARE_LLM_MAX_TOKENS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			maxTokens = parsed
		}
	}

	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Generate asks the model to choose one tool call for the given trigger.
// Tool choice is not forced; only the system prompt asks for a tool-only
// reply. A refusal, a reply with no tool_use block, an empty response, or a
// malformed tool call is generation_failed (nil, nil) —
// the gate treats a nil output the same as an LLM provider that declined.
func (c *Client) Generate(ctx context.Context, in suggestion.GenerationInput) (*suggestion.GenerationOutput, error) {
	tools := toAnthropicTools(in.Tools)
	if len(tools) == 0 {
		return nil, nil
	}

	maxTokens := c.maxTokens
	if in.Caps.OutputMax > 0 && int64(in.Caps.OutputMax) < maxTokens {
		maxTokens = int64(in.Caps.OutputMax)
	}

	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(triggerPrompt(in.TriggerData))),
		},
		Tools: tools,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic generate: %w", err)
	}
	if resp == nil {
		return nil, nil
	}

	return parseToolUse(resp)
}

// toAnthropicTools converts the budget-bounded tool schema snapshot passed
// by the gate into the SDK's tool-union shape. A tool whose schema carries
// no "properties" key is skipped rather than sent malformed.
func toAnthropicTools(tools []budget.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		properties, _ := t.Schema["properties"].(map[string]any)
		if properties == nil {
			continue
		}
		tool := anthropic.ToolParam{
			Name: t.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func systemPrompt() string {
	return "You are the CARE orchestrator's suggestion engine. Given a CRM trigger, " +
		"choose exactly one tool to call with concrete arguments. Respond only via a tool call."
}

func triggerPrompt(t care.TriggerData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "trigger_id: %s\nrecord_type: %s\nrecord_id: %s\npriority: %s\n", t.TriggerID, t.RecordType, t.RecordID, t.Priority)
	if len(t.Context) > 0 {
		if encoded, err := json.Marshal(t.Context); err == nil {
			fmt.Fprintf(&b, "context: %s\n", encoded)
		}
	}
	return b.String()
}

func parseToolUse(resp *anthropic.Message) (*suggestion.GenerationOutput, error) {
	for _, block := range resp.Content {
		toolUse := block.AsToolUse()
		if toolUse.Name == "" {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			return nil, nil
		}
		return &suggestion.GenerationOutput{
			Action: care.SuggestedAction{
				ToolName: toolUse.Name,
				ToolArgs: args,
			},
		}, nil
	}
	return nil, nil
}
