// Package mailer 发送站外邀请邮件。
package mailer

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Gopher0727/SocialSync/config"
)

// Invite describes an invitation for someone without an account yet.
type Invite struct {
	ToEmail     string
	InviterName string
	CircleName  string
	Link        string
}

type Mailer interface {
	SendInvite(ctx context.Context, inv Invite) error
	Enabled() bool
}

// New returns a no-op mailer when SendGrid is not configured.
func New(cfg config.MailConfig) Mailer {
	if cfg.SendGridAPIKey == "" || cfg.FromEmail == "" {
		return Nop{}
	}
	return NewSendGrid(cfg)
}

type SendGrid struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGrid(cfg config.MailConfig) *SendGrid {
	return &SendGrid{
		client:    sendgrid.NewSendClient(cfg.SendGridAPIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (s *SendGrid) Enabled() bool { return true }

func (s *SendGrid) SendInvite(ctx context.Context, inv Invite) error {
	resp, err := s.client.SendWithContext(ctx, s.inviteMessage(inv))
	if err != nil {
		return fmt.Errorf("send invite to %s: %w", inv.ToEmail, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send invite to %s: sendgrid status %d", inv.ToEmail, resp.StatusCode)
	}
	return nil
}

func (s *SendGrid) inviteMessage(inv Invite) *mail.SGMailV3 {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", inv.ToEmail)
	subject := fmt.Sprintf("%s invited you to %s", inv.InviterName, inv.CircleName)
	plain := fmt.Sprintf("%s wants you in the circle %q. Join here: %s", inv.InviterName, inv.CircleName, inv.Link)
	htmlContent := fmt.Sprintf(`<p>%s wants you in the circle <strong>%s</strong>.</p><p><a href="%s">Join the circle</a></p>`,
		html.EscapeString(inv.InviterName), html.EscapeString(inv.CircleName), html.EscapeString(inv.Link))
	return mail.NewSingleEmail(from, subject, to, plain, htmlContent)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Enabled() bool                           { return false }
func (Nop) SendInvite(context.Context, Invite) error { return nil }
