// Package slack implements the critical-suggestion Slack notifier (§12.1):
// adapted from the teacher's pkg/slack client, keyed by tenant Slack
// configuration instead of a session fingerprint.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api    *goslack.Client
	logger *slog.Logger
}

// NewClient creates a new Slack API client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		api:    goslack.New(token),
		logger: slog.Default().With("component", "care-slack-client"),
	}
}

// NewClientWithAPIURL targets a custom API URL, for testing against a mock
// server.
func NewClientWithAPIURL(token, apiURL string) *Client {
	return &Client{
		api:    goslack.New(token, goslack.OptionAPIURL(apiURL)),
		logger: slog.Default().With("component", "care-slack-client"),
	}
}

// PostMessage sends blocks to channelID, bounded by timeout.
func (c *Client) PostMessage(ctx context.Context, channelID string, blocks []goslack.Block, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}
