// Package notify delivers best-effort patrol event notifications to chat
// channels. Delivery failures never interrupt the patrol flow; callers log
// and move on.
package notify

import (
	"context"
	"errors"

	"github.com/omniwatch/omniwatch/internal/config"
)

// Kind identifies the kind of event being announced.
type Kind string

const (
	KindPatrolStarted Kind = "patrol_started"
	KindPatrolEnded   Kind = "patrol_ended"
	KindCheckpoint    Kind = "checkpoint"
	KindIncident      Kind = "incident"
	KindDigest        Kind = "digest"
)

// Event is a single notification.
type Event struct {
	Kind  Kind
	Title string
	Body  string
}

// Notifier delivers events to one destination.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// Multi fans an event out to several notifiers. Every notifier is attempted;
// failures are joined into one error.
type Multi []Notifier

// Send delivers ev to all notifiers.
func (m Multi) Send(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds a Notifier from configuration. Returns nil when no
// channel is configured.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var targets Multi
	if cfg.Discord.BotToken != "" && cfg.Discord.ChannelID != "" {
		d, err := NewDiscord(cfg.Discord.BotToken, cfg.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		targets = append(targets, d)
	}
	if cfg.Slack.BotToken != "" && cfg.Slack.ChannelID != "" {
		targets = append(targets, NewSlack(cfg.Slack.BotToken, cfg.Slack.ChannelID))
	}
	if len(targets) == 0 {
		return nil, nil
	}
	return targets, nil
}
