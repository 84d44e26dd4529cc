package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/campwatch/internal/config"
	"github.com/harunnryd/campwatch/internal/errors"
	"github.com/harunnryd/campwatch/internal/tracker"

	"github.com/slack-go/slack"
)

// API is the slice of the Slack client the notifier uses; tests substitute
// a fake.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	JoinConversationContext(ctx context.Context, channelID string) (*slack.Channel, string, []string, error)
}

// StatusChange is a webhook-driven status transition relayed to the team
// notification channel.
type StatusChange struct {
	IssueKey  string
	Summary   string
	From      string
	To        string
	UpdatedBy string
	At        time.Time
}

// Notifier posts timer alerts and status-change notes as block messages.
type Notifier struct {
	client        API
	mapper        errors.ErrorMapper
	jiraHost      string
	alertChannel  string
	notifyChannel string
}

func NewNotifier(cfg config.SlackConfig, jiraHost string) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, errors.InvalidInput("slack bot token is required")
	}
	if cfg.AlertChannel == "" {
		return nil, errors.InvalidInput("slack alert channel is required")
	}
	return &Notifier{
		client:        slack.New(cfg.BotToken),
		mapper:        errors.NewDefaultErrorMapper(),
		jiraHost:      jiraHost,
		alertChannel:  cfg.AlertChannel,
		notifyChannel: cfg.NotifyChannel,
	}, nil
}

// NewNotifierWithClient wires an explicit API implementation (tests).
func NewNotifierWithClient(client API, jiraHost, alertChannel, notifyChannel string) *Notifier {
	return &Notifier{
		client:        client,
		mapper:        errors.NewDefaultErrorMapper(),
		jiraHost:      jiraHost,
		alertChannel:  alertChannel,
		notifyChannel: notifyChannel,
	}
}

// PostAlert sends one threshold-breach alert to the alert channel, joining
// it first if needed.
func (n *Notifier) PostAlert(ctx context.Context, alert tracker.Alert) error {
	n.EnsureChannel(ctx, n.alertChannel)

	header := "⏰ Status Timer Alert"
	if alert.Dimension == tracker.DimensionLifecycle {
		header = "⏰ Campaign Status Timer Alert"
	}
	if alert.AssigneeGated {
		header = "⏰ Assignee Action Required"
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Issue:*\n<https://%s/browse/%s|%s>", n.jiraHost, alert.IssueKey, alert.IssueKey), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Current Status:*\n%s", alert.Status), false, false),
	}
	if alert.AssigneeGated {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Alert:*\nAssignee has been on this task for over %d minutes", alert.ElapsedMinutes()), false, false))
	}
	fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("*Time in Status:*\n%d minutes", alert.ElapsedMinutes()), false, false))

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, true, false)),
		slack.NewSectionBlock(nil, fields, nil),
	}

	_, _, err := n.client.PostMessageContext(ctx, n.alertChannel,
		slack.MsgOptionText(fmt.Sprintf("Status Timer Alert for %s", alert.IssueKey), false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return errors.Wrap(n.mapper.MapError(err), "failed to send Slack alert")
	}

	slog.Debug("Alert sent", "issue", alert.IssueKey, "channel", n.alertChannel)
	return nil
}

// PostStatusChange relays a status transition to the notification channel.
// Best effort; skipped when no notification channel is configured.
func (n *Notifier) PostStatusChange(ctx context.Context, change StatusChange) error {
	if n.notifyChannel == "" {
		return nil
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Issue:*\n<https://%s/browse/%s|%s>", n.jiraHost, change.IssueKey, change.IssueKey), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Campaign:*\n%s", change.Summary), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Previous Status:*\n%s", change.From), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*New Status:*\n%s", change.To), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Updated By:*\n%s", change.UpdatedBy), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Updated At:*\n%s", change.At.Format(time.RFC1123)), false, false),
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "🔄 Jira Status Update", true, false)),
		slack.NewSectionBlock(nil, fields, nil),
	}

	_, _, err := n.client.PostMessageContext(ctx, n.notifyChannel,
		slack.MsgOptionText(fmt.Sprintf("Status updated for %s", change.IssueKey), false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return errors.Wrap(n.mapper.MapError(err), "failed to send status change notification")
	}
	return nil
}

// EnsureChannel joins a channel before posting. Joining is idempotent:
// "already in channel" responses are swallowed, anything else is logged and
// the post is attempted anyway.
func (n *Notifier) EnsureChannel(ctx context.Context, channelID string) {
	_, _, _, err := n.client.JoinConversationContext(ctx, channelID)
	if err != nil && !strings.Contains(err.Error(), "already_in_channel") {
		slog.Warn("Failed to join channel", "channel", channelID, "error", err)
	}
}
