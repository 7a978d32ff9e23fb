// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package outbound

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/wevote/wevote-server/cliparse"
)

// SMTPSender delivers email through an SMTP relay
type SMTPSender struct {
	settings cliparse.SMTPSettings
}

func NewSMTPSender(settings cliparse.SMTPSettings) *SMTPSender {
	return &SMTPSender{settings: settings}
}

// NewEmailSender returns an SMTP sender when a host is configured and a
// LogSender otherwise
func NewEmailSender(settings cliparse.SMTPSettings) EmailSender {
	if settings.Host == "" {
		return LogSender{}
	}
	return NewSMTPSender(settings)
}

// buildMessage is split out so tests can check headers without a server
func (s *SMTPSender) buildMessage(msg Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.settings.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.SetCharset(mail.CharsetUTF8)
	return m, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, msg Email) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.settings.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.settings.Username != "" {
		opts = append(opts,
			mail.WithUsername(s.settings.Username),
			mail.WithPassword(s.settings.Password),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
		)
	}

	c, err := mail.NewClient(s.settings.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("email sent", "subject", msg.Subject)
	return nil
}
