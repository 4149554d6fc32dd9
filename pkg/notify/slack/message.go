package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
)

// BuildCriticalSuggestionMessage creates Block Kit blocks for a
// priority=critical suggestion notification.
func BuildCriticalSuggestionMessage(tenantID, dashboardURL string, suggestion care.Suggestion) []goslack.Block {
	url := fmt.Sprintf("%s/tenants/%s/suggestions/%s", dashboardURL, tenantID, suggestion.ID)
	text := fmt.Sprintf(
		":rotating_light: *Critical suggestion for %s %s*\nAction: `%s`\n<%s|View in Dashboard>",
		suggestion.EntityRef.EntityType, suggestion.EntityRef.EntityID, suggestion.Action.ToolName, url,
	)

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}
