package budget

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AppliedResult is the trimmed set of prompt components after ApplyBudgetCaps,
// plus the ordered list of actions taken to reach it.
type AppliedResult struct {
	SystemPrompt        string
	Messages            []Message
	Tools               []Tool
	MemoryText          string
	ToolResultSummaries []string
	ActionsTaken        []string
}

// ApplyBudgetCaps enforces caps.HardCeiling by truncating or dropping
// components in priority order: memory → tool-result summaries → tools →
// oldest non-last-user messages. The last user message and any forcedTool
// are never dropped; the system prompt is truncated but never removed.
func ApplyBudgetCaps(in BudgetInputs, caps Caps, coreTools map[string]bool) AppliedResult {
	result := AppliedResult{
		SystemPrompt:        truncateAtLineBoundary(in.SystemPrompt, caps.SystemPrompt*charsPerToken, "system prompt exceeded cap"),
		Messages:            append([]Message(nil), in.Messages...),
		Tools:               enforceToolSchemaCap(in.Tools, ToolSchemaCapOptions{Cap: caps.ToolSchema, ForcedTool: in.ForcedTool}),
		MemoryText:          truncateAtLineBoundary(in.MemoryText, caps.Memory*charsPerToken, "memory exceeded cap"),
		ToolResultSummaries: truncateToolResults(in.ToolResultSummaries, caps.ToolResult),
	}

	total := func() int {
		r := BuildBudgetReport(BudgetInputs{
			SystemPrompt:        result.SystemPrompt,
			Messages:            result.Messages,
			Tools:               result.Tools,
			MemoryText:          result.MemoryText,
			ToolResultSummaries: result.ToolResultSummaries,
		}, caps)
		return r.Sizes.Total
	}

	if total() <= caps.HardCeiling {
		return result
	}

	// 1. drop memory entirely.
	if result.MemoryText != "" {
		result.MemoryText = ""
		result.ActionsTaken = append(result.ActionsTaken, "cleared_memory")
		if total() <= caps.HardCeiling {
			return result
		}
	}

	// 2. drop tool-result summaries entirely.
	if len(result.ToolResultSummaries) > 0 {
		dropped := len(result.ToolResultSummaries)
		result.ToolResultSummaries = nil
		result.ActionsTaken = append(result.ActionsTaken, fmt.Sprintf("dropped_%d_tool_results", dropped))
		if total() <= caps.HardCeiling {
			return result
		}
	}

	// 3. drop every non-core, non-forced tool in one step, keeping the forced
	// tool and any core tool always present.
	result.Tools = dropNonEssentialTools(result.Tools, in.ForcedTool, coreTools, &result.ActionsTaken)
	if total() <= caps.HardCeiling {
		return result
	}

	// 4. drop oldest non-last-user messages, one at a time, never touching
	// the final user message.
	fixed := EstimateTokens(result.SystemPrompt) + estimateToolsTokens(result.Tools)
	result.Messages = dropOldestMessages(result.Messages, fixed, caps.HardCeiling, &result.ActionsTaken)

	return result
}

func truncateToolResults(summaries []string, capTokens int) []string {
	if len(summaries) == 0 {
		return nil
	}
	out := make([]string, len(summaries))
	for i, s := range summaries {
		out[i] = truncateAtLineBoundary(s, capTokens*charsPerToken, "tool result exceeded cap")
	}
	return out
}

func dropNonEssentialTools(tools []Tool, forcedTool string, coreTools map[string]bool, actions *[]string) []Tool {
	kept := make([]Tool, 0, len(tools))
	dropped := 0
	for _, t := range tools {
		if t.Name == forcedTool || coreTools[t.Name] {
			kept = append(kept, t)
			continue
		}
		dropped++
	}
	if dropped > 0 {
		*actions = append(*actions, fmt.Sprintf("dropped_%d_tools", dropped))
	}
	return kept
}

func lastUserIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

func dropOldestMessages(messages []Message, fixed, ceiling int, actions *[]string) []Message {
	protect := lastUserIndex(messages)
	dropped := 0
	for fixed+estimateMessagesTokens(messages) > ceiling {
		idx := -1
		for i := range messages {
			if i == protect {
				continue
			}
			idx = i
			break
		}
		if idx == -1 {
			break // nothing left to drop besides the protected message
		}
		messages = append(messages[:idx], messages[idx+1:]...)
		if protect > idx {
			protect--
		}
		dropped++
	}
	if dropped > 0 {
		*actions = append(*actions, fmt.Sprintf("dropped_%d_messages", dropped))
	}
	return messages
}

// truncateAtLineBoundary cuts content at the last newline before maxChars,
// preserving logical line boundaries and UTF-8 rune boundaries.
func truncateAtLineBoundary(content string, maxChars int, marker string) string {
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	truncated := content[:cut]
	if idx := strings.LastIndex(truncated, "\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + fmt.Sprintf("\n\n[TRUNCATED: %s]", marker)
}
