// Package notify posts innovation funnel stage changes to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/storyforge/internal/config"
)

// Sidebar colors by severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Event is one funnel stage transition.
type Event struct {
	ItemID    uint
	Title     string
	FromStage string
	ToStage   string
	Reason    string
	RiceScore *float64
	At        time.Time
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Field is a key-value pair shown under the message.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Message is an Event rendered for chat.
type Message struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Format renders evt. Rejections are warnings, items entering In Flight are
// successes and everything else is informational.
func Format(evt Event) Message {
	msg := Message{
		Title: fmt.Sprintf("%s moved to %s", evt.Title, evt.ToStage),
		Color: ColorInfo,
	}
	switch evt.ToStage {
	case "Rejected":
		msg.Color = ColorWarning
	case "In Flight":
		msg.Color = ColorSuccess
	}
	if evt.FromStage != "" {
		msg.Body = fmt.Sprintf("%s → %s", evt.FromStage, evt.ToStage)
	}

	msg.Fields = append(msg.Fields, Field{Name: "Item", Value: "#" + strconv.FormatUint(uint64(evt.ItemID), 10), Short: true})
	if evt.RiceScore != nil {
		msg.Fields = append(msg.Fields, Field{Name: "RICE", Value: strconv.FormatFloat(*evt.RiceScore, 'f', 2, 64), Short: true})
	}
	if evt.Reason != "" {
		msg.Fields = append(msg.Fields, Field{Name: "Reason", Value: evt.Reason})
	}
	return msg
}

// FromConfig builds the notifiers enabled in cfg. With none enabled it
// returns Nop.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var out Multi
	if cfg.Slack.BotToken != "" {
		s, err := NewSlack(SlackOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if cfg.Discord.BotToken != "" {
		d, err := NewDiscord(DiscordOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	switch len(out) {
	case 0:
		return Nop{}, nil
	case 1:
		return out[0], nil
	}
	return out, nil
}

// parseHexColor converts "#36a64f" to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
