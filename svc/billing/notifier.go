package billing

import (
	"context"
	"fmt"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/reviewfunnel/pkg/email"
	"github.com/dmitrymomot/reviewfunnel/pkg/email/templates"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

// EmailNotifier emails users when their subscription falls past due or is
// canceled.
type EmailNotifier struct {
	sender       email.Sender
	directory    subscription.Directory
	dashboardURL string
}

func NewEmailNotifier(sender email.Sender, dir subscription.Directory, dashboardURL string) *EmailNotifier {
	if sender == nil || dir == nil {
		panic("billing: email notifier requires a sender and a directory")
	}
	return &EmailNotifier{sender: sender, directory: dir, dashboardURL: dashboardURL}
}

func (n *EmailNotifier) Notify(ctx context.Context, note subscription.Notification) error {
	if note.Record == nil {
		return nil
	}
	var (
		subject string
		tpl     templ.Component
	)
	switch note.Record.Status {
	case subscription.StatusPastDue:
		subject = "Payment failed"
		tpl = pastDueEmail(n.dashboardURL)
	case subscription.StatusCanceled:
		subject = "Subscription canceled"
		tpl = canceledEmail(n.dashboardURL)
	default:
		return nil
	}

	to, err := n.directory.EmailFor(ctx, note.UserID)
	if err != nil {
		return fmt.Errorf("resolve notification recipient: %w", err)
	}

	body, err := templates.Render(ctx, tpl)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}
	return n.sender.Send(ctx, email.Message{
		To:       to,
		Subject:  subject,
		BodyHTML: body,
		Tag:      "subscription-" + string(note.Record.Status),
	})
}
