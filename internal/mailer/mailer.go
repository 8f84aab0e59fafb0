// Package mailer sends transactional mail over SMTP.  Sends are
// best-effort from the flows' point of view: failures surface to the
// caller and are never retried internally, and tokens are already durably
// stored before any mail is attempted, so a slow or failed send cannot
// corrupt auth state.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Sender is the outbound email contract the flows depend on.  Tests
// substitute a recording fake.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPMailer sends HTML mail through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     strings.TrimSpace(host),
		port:     strings.TrimSpace(port),
		username: username,
		password: password,
		from:     strings.TrimSpace(from),
	}
}

// Send delivers a single HTML message.  The context is checked before
// dialing; net/smtp itself does not take a context.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if m == nil {
		return errors.New("mailer not configured")
	}
	if m.host == "" || m.port == "" || m.from == "" {
		return errors.New("mailer missing configuration")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(html)
	msg.WriteString("\r\n")

	addr := net.JoinHostPort(m.host, m.port)
	var auth smtp.Auth
	if m.username != "" || m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg.String()))
}

// OTPBody renders the signup verification mail.  The code is short-lived,
// so the validity window is spelled out for the user.
func OTPBody(otp string, ttlSeconds int) (subject, html string) {
	subject = "Your registration verification code"
	html = fmt.Sprintf(
		"<h1>Registration Verification</h1>"+
			"<p>Your verification code is: <strong>%s</strong></p>"+
			"<p>This code is valid for %d seconds.</p>", otp, ttlSeconds)
	return subject, html
}

// ResetBody renders the password reset mail with the link the frontend
// consumes.
func ResetBody(resetURL string, ttlMinutes int) (subject, html string) {
	subject = "Password Reset Request"
	html = fmt.Sprintf(
		"<h1>Password Reset Request</h1>"+
			"<p>You requested a password reset. Click the link below to choose a new password:</p>"+
			"<p><a href=%q>Reset Password</a></p>"+
			"<p>If you didn't request this, please ignore this email.</p>"+
			"<p>This link will expire in %d minutes.</p>", resetURL, ttlMinutes)
	return subject, html
}
