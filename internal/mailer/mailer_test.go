package mailer

import (
	"context"
	"strings"
	"testing"
)

func TestOTPBody(t *testing.T) {
	subject, html := OTPBody("482910", 90)
	if subject == "" {
		t.Fatal("empty subject")
	}
	if !strings.Contains(html, "482910") {
		t.Errorf("body does not contain the code: %s", html)
	}
	if !strings.Contains(html, "90 seconds") {
		t.Errorf("body does not spell out the validity window: %s", html)
	}
}

func TestResetBody(t *testing.T) {
	link := "https://portal.test/reset?token=abc&email=p%40x.com"
	subject, html := ResetBody(link, 60)
	if subject == "" {
		t.Fatal("empty subject")
	}
	if !strings.Contains(html, link) {
		t.Errorf("body does not contain the reset link: %s", html)
	}
	if !strings.Contains(html, "60 minutes") {
		t.Errorf("body does not spell out the validity window: %s", html)
	}
}

func TestSendRequiresConfiguration(t *testing.T) {
	m := NewSMTPMailer("", "", "", "", "")
	if err := m.Send(context.Background(), "to@x.com", "s", "<p>b</p>"); err == nil {
		t.Fatal("send succeeded without host/port/from")
	}
}

func TestSendHonorsCancelledContext(t *testing.T) {
	m := NewSMTPMailer("localhost", "2525", "", "", "noreply@portal.test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "to@x.com", "s", "<p>b</p>"); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
