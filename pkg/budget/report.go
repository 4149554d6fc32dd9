package budget

// ComponentSizes breaks the estimated token count down by prompt component.
type ComponentSizes struct {
	SystemPrompt int
	Messages     int
	Tools        int
	Memory       int
	ToolResults  int
	Total        int
}

// Report is the result of buildBudgetReport: component sizes, the caps they
// were measured against, and whether the total exceeds HardCeiling.
type Report struct {
	Sizes      ComponentSizes
	Caps       Caps
	OverBudget bool
}

// BudgetInputs is the full set of components one LLM call would send.
type BudgetInputs struct {
	SystemPrompt        string
	Messages            []Message
	Tools               []Tool
	MemoryText          string
	ToolResultSummaries []string
	ForcedTool          string
}

// BuildBudgetReport estimates the token size of every component of in and
// compares the total against caps.HardCeiling.
func BuildBudgetReport(in BudgetInputs, caps Caps) Report {
	sizes := ComponentSizes{
		SystemPrompt: EstimateTokens(in.SystemPrompt),
		Messages:     estimateMessagesTokens(in.Messages),
		Tools:        estimateToolsTokens(in.Tools),
		Memory:       EstimateTokens(in.MemoryText),
		ToolResults:  estimateToolResultsTokens(in.ToolResultSummaries),
	}
	sizes.Total = sizes.SystemPrompt + sizes.Messages + sizes.Tools + sizes.Memory + sizes.ToolResults

	return Report{
		Sizes:      sizes,
		Caps:       caps,
		OverBudget: sizes.Total > caps.HardCeiling,
	}
}

func estimateToolResultsTokens(summaries []string) int {
	total := 0
	for _, s := range summaries {
		total += EstimateTokens(s)
	}
	return total
}
