package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/omniwatch/omniwatch/internal/config"
	slackapi "github.com/slack-go/slack"
)

// mockDiscordSession records sent embeds.
type mockDiscordSession struct {
	channelID string
	embed     *discordgo.MessageEmbed
	err       error
}

func (m *mockDiscordSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.channelID = channelID
	m.embed = embed
	return &discordgo.Message{}, m.err
}

// mockSlackClient records posted messages.
type mockSlackClient struct {
	channelID string
	calls     int
	err       error
}

func (m *mockSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.channelID = channelID
	m.calls++
	return "", "", m.err
}

func TestDiscord_Send(t *testing.T) {
	mock := &mockDiscordSession{}
	d := &Discord{sess: mock, channelID: "chan-1"}

	ev := Event{Kind: KindCheckpoint, Title: "Checkpoint: Gate A", Body: "all clear"}
	if err := d.Send(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mock.channelID != "chan-1" {
		t.Errorf("channel = %q, want chan-1", mock.channelID)
	}
	if mock.embed == nil || mock.embed.Title != "Checkpoint: Gate A" {
		t.Errorf("embed = %+v, want checkpoint title", mock.embed)
	}
	if mock.embed.Footer == nil || mock.embed.Footer.Text != string(KindCheckpoint) {
		t.Errorf("footer = %+v, want event kind", mock.embed.Footer)
	}
}

func TestDiscord_SendError(t *testing.T) {
	mock := &mockDiscordSession{err: errors.New("rate limited")}
	d := &Discord{sess: mock, channelID: "chan-1"}

	err := d.Send(context.Background(), Event{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Send() = %v, want wrapped rate limited error", err)
	}
}

func TestSlack_Send(t *testing.T) {
	mock := &mockSlackClient{}
	s := &Slack{client: mock, channelID: "C0FFEE"}

	if err := s.Send(context.Background(), Event{Kind: KindPatrolEnded, Title: "Patrol ended"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mock.channelID != "C0FFEE" {
		t.Errorf("channel = %q, want C0FFEE", mock.channelID)
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1", mock.calls)
	}
}

// stubNotifier counts sends and optionally fails.
type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Send(ctx context.Context, ev Event) error {
	s.calls++
	return s.err
}

func TestMulti_FansOutToAll(t *testing.T) {
	a, b := &stubNotifier{}, &stubNotifier{}
	m := Multi{a, b}

	if err := m.Send(context.Background(), Event{Title: "x"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", a.calls, b.calls)
	}
}

func TestMulti_AttemptsAllDespiteFailure(t *testing.T) {
	a := &stubNotifier{err: errors.New("discord down")}
	b := &stubNotifier{}
	m := Multi{a, b}

	err := m.Send(context.Background(), Event{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "discord down") {
		t.Errorf("Send() = %v, want joined discord error", err)
	}
	if b.calls != 1 {
		t.Errorf("second notifier calls = %d, want 1 (must be attempted)", b.calls)
	}
}

func TestFromConfig_NoneConfigured(t *testing.T) {
	n, err := FromConfig(config.NotifyConfig{})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if n != nil {
		t.Errorf("FromConfig(empty) = %v, want nil", n)
	}
}

func TestFromConfig_BothConfigured(t *testing.T) {
	cfg := config.NotifyConfig{
		Discord: config.DiscordConfig{BotToken: "t", ChannelID: "c"},
		Slack:   config.SlackConfig{BotToken: "xoxb", ChannelID: "C1"},
	}
	n, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	multi, ok := n.(Multi)
	if !ok {
		t.Fatalf("FromConfig() = %T, want Multi", n)
	}
	if len(multi) != 2 {
		t.Errorf("len(Multi) = %d, want 2", len(multi))
	}
}
