// Package notify posts best-effort Slack notices for terminal session
// failures. Errors are logged, never returned; notification must not
// affect lifecycle outcomes.
package notify

import (
	"fmt"
	"log"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API method we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts to a fixed channel via the Slack Web API.
type SlackNotifier struct {
	client  slackClient
	channel string
}

// NewSlackNotifier creates a notifier for the given bot token and channel.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slackapi.New(token),
		channel: channel,
	}
}

// SessionFailed announces that a session's enrichment has been marked
// terminally failed.
func (n *SlackNotifier) SessionFailed(sessionID, reason string) {
	text := fmt.Sprintf(":warning: Enrichment failed permanently for session `%s`: %s", sessionID, reason)
	if _, _, err := n.client.PostMessage(n.channel, slackapi.MsgOptionText(text, false)); err != nil {
		log.Printf("notify: slack post for %s: %v", sessionID, err)
	}
}
