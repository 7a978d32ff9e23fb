// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

type Email struct {
	To      string
	Subject string
	Body    string
}

type SMS struct {
	To   string
	Body string
}

type EmailSender interface {
	SendEmail(ctx context.Context, msg Email) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, msg SMS) error
}

// VerificationEmail asks the owner of an address to confirm it by link
func VerificationEmail(to, webAppRootURL, secretKey string) Email {
	link := strings.TrimRight(webAppRootURL, "/") + "/verify_email/" + secretKey
	return Email{
		To:      to,
		Subject: "Please verify your email",
		Body: "Please verify your email address for We Vote by visiting:\n\n" + link +
			"\n\nIf you did not request this, you can ignore this message.",
	}
}

// SignInCodeEmail carries a six digit code entered on the device that asked for it
func SignInCodeEmail(to, secretCode string) Email {
	return Email{
		To:      to,
		Subject: fmt.Sprintf("%s is your We Vote sign in code", secretCode),
		Body: fmt.Sprintf("Your sign in code is %s. It expires in 24 hours.\n\n"+
			"If you did not request this, you can ignore this message.", secretCode),
	}
}

// SignInCodeSMS is the text message form of SignInCodeEmail
func SignInCodeSMS(to, secretCode string) SMS {
	return SMS{
		To:   to,
		Body: fmt.Sprintf("%s is your We Vote sign in code.", secretCode),
	}
}

// LogSender writes messages to the log instead of delivering them.
// Used in development and wherever no gateway is configured.
type LogSender struct{}

func (LogSender) SendEmail(_ context.Context, msg Email) error {
	slog.Info("email not delivered (log sender)", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (LogSender) SendSMS(_ context.Context, msg SMS) error {
	slog.Info("sms not delivered (log sender)", "to", msg.To)
	return nil
}

// MemorySender records messages for tests
type MemorySender struct {
	mu     sync.Mutex
	Emails []Email
	Texts  []SMS
}

func (m *MemorySender) SendEmail(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, msg)
	return nil
}

func (m *MemorySender) SendSMS(_ context.Context, msg SMS) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, msg)
	return nil
}

// LastEmail returns the most recent email, if any
func (m *MemorySender) LastEmail() (Email, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Emails) == 0 {
		return Email{}, false
	}
	return m.Emails[len(m.Emails)-1], true
}

// LastSMS returns the most recent text message, if any
func (m *MemorySender) LastSMS() (SMS, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Texts) == 0 {
		return SMS{}, false
	}
	return m.Texts[len(m.Texts)-1], true
}
