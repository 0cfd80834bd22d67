// Package mail sends transactional email (confirmation links, reset codes).
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// Mailer sends the two transactional messages the API produces. Implemented
// by SMTPMailer in production and stubbed in tests.
type Mailer interface {
	SendConfirmation(ctx context.Context, to, name, link string) error
	SendResetCode(ctx context.Context, to, name, code string) error
}

// SMTPConfig carries the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // sender address, e.g. "Cardfile <no-reply@example.com>"
}

type SMTPMailer struct {
	client *gomail.Client
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) SendConfirmation(ctx context.Context, to, name, link string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nPlease confirm your email address by opening the link below:\n\n%s\n\nIf you did not sign up, you can ignore this message.\n",
		name, link)
	return m.send(ctx, to, "Confirm your email", body)
}

func (m *SMTPMailer) SendResetCode(ctx context.Context, to, name, code string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour password reset code is:\n\n    %s\n\nThe code expires in one hour and can be used once.\nIf you did not request a reset, you can ignore this message.\n",
		name, code)
	return m.send(ctx, to, "Password reset code", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
