// Package email sends transactional email. The billing module uses it for
// subscription receipts; delivery failures there are logged and never fail
// the operation they are attached to.
package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrFailedToSend  = errors.New("email: failed to send")
	ErrInvalidConfig = errors.New("email: invalid configuration")
	ErrInvalidParams = errors.New("email: invalid send parameters")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailSender sends one transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one outbound email.
type SendEmailParams struct {
	SendTo   string
	Subject  string
	BodyHTML string
	Tag      string // optional provider-side category
}

// Validate checks the parameters before they reach a provider.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" || !emailRegex.MatchString(p.SendTo) {
		return fmt.Errorf("%w: recipient %q", ErrInvalidParams, p.SendTo)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// Config holds sender identity and provider credentials.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}
