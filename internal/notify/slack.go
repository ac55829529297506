package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient is the subset of the Slack API used here.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackOpts configures a Slack notifier.
type SlackOpts struct {
	BotToken  string // xoxb-...
	ChannelID string
	// Client replaces the real API in tests.
	Client slackClient
}

// Slack posts events as message attachments.
type Slack struct {
	client    slackClient
	channelID string
}

// NewSlack returns a Slack notifier.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack channel id is required")
	}
	client := opts.Client
	if client == nil {
		if opts.BotToken == "" {
			return nil, fmt.Errorf("notify: slack bot token is required")
		}
		client = slackapi.New(opts.BotToken)
	}
	return &Slack{client: client, channelID: opts.ChannelID}, nil
}

// Notify posts evt to the configured channel.
func (s *Slack) Notify(ctx context.Context, evt Event) error {
	msg := Format(evt)
	att := slackapi.Attachment{
		Color: msg.Color,
		Title: msg.Title,
		Text:  msg.Body,
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: f.Short})
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slackapi.MsgOptionText(msg.Title, false),
		slackapi.MsgOptionAttachments(att),
	)
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
