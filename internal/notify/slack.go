package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts events to a Slack channel.
type Slack struct {
	client    slackClient
	channelID string
}

// NewSlack creates a Slack notifier with a bot token and target channel.
func NewSlack(botToken, channelID string) *Slack {
	return &Slack{
		client:    slackapi.New(botToken),
		channelID: channelID,
	}
}

// Send posts the event as a text message.
func (s *Slack) Send(ctx context.Context, ev Event) error {
	text := "*" + ev.Title + "*"
	if ev.Body != "" {
		text += "\n" + ev.Body
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: slack send: %w", err)
	}
	return nil
}
