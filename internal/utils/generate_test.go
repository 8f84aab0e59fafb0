package utils

import "testing"

func TestGenerateOTPShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		otp, err := GenerateOTP(6)
		if err != nil {
			t.Fatalf("generate otp: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("otp %q has length %d, want 6", otp, len(otp))
		}
		for _, r := range otp {
			if r < '0' || r > '9' {
				t.Fatalf("otp %q contains non-digit %q", otp, r)
			}
		}
	}
}

func TestGenerateResetTokenShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tok, err := GenerateResetToken()
		if err != nil {
			t.Fatalf("generate reset token: %v", err)
		}
		if len(tok) != 64 {
			t.Fatalf("reset token length = %d, want 64 hex chars", len(tok))
		}
		if seen[tok] {
			t.Fatalf("duplicate reset token generated: %s", tok)
		}
		seen[tok] = true
	}
}
