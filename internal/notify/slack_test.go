package notify

import (
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
)

// mockSlack records posted messages.
type mockSlack struct {
	channels []string
	options  [][]slackapi.MsgOption
	err      error
}

func (m *mockSlack) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.channels = append(m.channels, channelID)
	m.options = append(m.options, options)
	return channelID, "123.456", m.err
}

func TestSessionFailed_PostsToChannel(t *testing.T) {
	mock := &mockSlack{}
	n := &SlackNotifier{client: mock, channel: "#alerts"}

	n.SessionFailed("sess-1", "invalid api key")

	if len(mock.channels) != 1 || mock.channels[0] != "#alerts" {
		t.Fatalf("posted to %v, want [#alerts]", mock.channels)
	}
}

func TestSessionFailed_PostErrorIsSwallowed(t *testing.T) {
	mock := &mockSlack{err: errors.New("channel_not_found")}
	n := &SlackNotifier{client: mock, channel: "#alerts"}

	// Must not panic or propagate.
	n.SessionFailed("sess-1", "boom")

	if len(mock.channels) != 1 {
		t.Fatalf("post attempts = %d, want 1", len(mock.channels))
	}
}

func TestNewSlackNotifier(t *testing.T) {
	n := NewSlackNotifier("xoxb-test", "#alerts")
	if n.channel != "#alerts" {
		t.Errorf("channel = %q", n.channel)
	}
	if n.client == nil {
		t.Error("client not constructed")
	}
}
