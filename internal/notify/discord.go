package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session methods we use, enabling
// test mocks. Sending channel messages only needs the REST API, so the
// gateway connection is never opened.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts events to a Discord channel.
type Discord struct {
	sess      discordSession
	channelID string
}

// NewDiscord creates a Discord notifier with a bot token and target channel.
func NewDiscord(botToken, channelID string) (*Discord, error) {
	sess, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &Discord{sess: sess, channelID: channelID}, nil
}

// Send posts the event as an embed.
func (d *Discord) Send(ctx context.Context, ev Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Footer:      &discordgo.MessageEmbedFooter{Text: string(ev.Kind)},
	}
	_, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}
