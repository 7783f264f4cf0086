// Package slackclient posts operational alerts to the staff Slack channel
package slackclient

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Client posts to a single channel
type Client struct {
	api     *slack.Client
	channel string
}

// NewClient creates a client for the bot token and channel ID. Extra options
// are passed to slack.New, e.g. slack.OptionAPIURL in tests.
func NewClient(token, channel string, options ...slack.Option) *Client {
	return &Client{
		api:     slack.New(token, options...),
		channel: channel,
	}
}

// NotifyStaff posts text to the staff channel
func (c *Client) NotifyStaff(ctx context.Context, text string) error {
	if _, _, err := c.api.PostMessageContext(ctx, c.channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("failed to post to slack channel %s: %w", c.channel, err)
	}
	return nil
}
