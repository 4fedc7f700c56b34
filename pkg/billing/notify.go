package billing

import (
	"context"
	"fmt"

	"github.com/meridianhq/meridian/pkg/email"
)

// ActivationNotifier is told when a guest checkout has been reconciled into
// an active subscription. Notification failures must never roll back or fail
// the reconciliation they are attached to; the dispatcher catches and logs
// them independently.
type ActivationNotifier interface {
	SubscriptionActivated(ctx context.Context, notice ActivationNotice) error
}

// ActivationNotice describes a completed activation.
type ActivationNotice struct {
	Email string
	Plan  string
}

// EmailNotifier sends a receipt email through the configured sender.
type EmailNotifier struct {
	sender email.EmailSender
}

func NewEmailNotifier(sender email.EmailSender) *EmailNotifier {
	if sender == nil {
		panic("billing: EmailSender is required")
	}
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) SubscriptionActivated(ctx context.Context, notice ActivationNotice) error {
	if notice.Email == "" {
		return nil
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   notice.Email,
		Subject:  "Your subscription is active",
		BodyHTML: fmt.Sprintf("<p>Thanks for subscribing! Your <strong>%s</strong> plan is now active.</p>", notice.Plan),
		Tag:      "subscription-activated",
	})
}

// NoopNotifier discards notices. Used where receipts are delivered by the
// external auth/billing plugin.
type NoopNotifier struct{}

func (NoopNotifier) SubscriptionActivated(context.Context, ActivationNotice) error { return nil }
