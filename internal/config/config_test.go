package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":                   "dev",
		"APP_PORT":                  "8080",
		"DB_USER":                   "root",
		"DB_HOST":                   "localhost",
		"DB_PORT":                   "3306",
		"DB_NAME":                   "portal",
		"JWT_ACCESS_SECRET":         "a",
		"JWT_REFRESH_SECRET":        "b",
		"JWT_DOCTOR_ACCESS_SECRET":  "c",
		"JWT_DOCTOR_REFRESH_SECRET": "d",
		"SMTP_HOST":                 "smtp.localhost",
		"EMAIL_FROM":                "noreply@portal.test",
		"RESET_URL_BASE":            "https://portal.test/reset",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg := Load()

	if cfg.AccessTTLMin != 15 {
		t.Errorf("AccessTTLMin = %d, want 15", cfg.AccessTTLMin)
	}
	if cfg.DoctorAccessTTLMin != 5 {
		t.Errorf("DoctorAccessTTLMin = %d, want 5", cfg.DoctorAccessTTLMin)
	}
	if cfg.RefreshTTLDays != 7 {
		t.Errorf("RefreshTTLDays = %d, want 7", cfg.RefreshTTLDays)
	}
	if cfg.OTPTTLSec != 90 {
		t.Errorf("OTPTTLSec = %d, want 90", cfg.OTPTTLSec)
	}
	if cfg.ResetTTLMin != 60 {
		t.Errorf("ResetTTLMin = %d, want 60", cfg.ResetTTLMin)
	}
	if cfg.SMTPPort != "587" {
		t.Errorf("SMTPPort = %q, want 587", cfg.SMTPPort)
	}
	if cfg.Secrets.DoctorAccessSecret != "c" {
		t.Errorf("doctor access secret = %q, want c", cfg.Secrets.DoctorAccessSecret)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "30")
	t.Setenv("BCRYPT_COST", "10")

	cfg := Load()
	if cfg.AccessTTLMin != 30 {
		t.Errorf("AccessTTLMin = %d, want 30", cfg.AccessTTLMin)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("Capacity = %d, want clamped to 1", cfg.Capacity)
	}
	if cfg.RefillTokens != 1 {
		t.Errorf("RefillTokens = %d, want clamped to 1", cfg.RefillTokens)
	}
	if want := 5 * cfg.RefillInterval; cfg.TTL < want {
		t.Errorf("TTL = %v, want at least %v", cfg.TTL, want)
	}
}

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	if !cfg.Enabled {
		t.Error("limiter should default to enabled")
	}
	if cfg.Capacity != 10 {
		t.Errorf("Capacity = %d, want 10", cfg.Capacity)
	}
	if cfg.RefillInterval != 3*time.Second {
		t.Errorf("RefillInterval = %v, want 3s", cfg.RefillInterval)
	}
}
