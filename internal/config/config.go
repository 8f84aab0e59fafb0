package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/carelink/portal-auth/internal/utils"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Signing secrets are process-wide and
// read-only after startup; a missing secret is a fatal startup error,
// never a per-request one.
type Config struct {
	Env     string // application environment (e.g. "dev", "prod")
	Port    string // HTTP port to listen on
	DBUser  string // database username
	DBPass  string // database password (optional)
	DBHost  string // database host address
	DBPort  string // database port number
	DBName  string // database name

	Secrets utils.SecretSet // per-(role,kind) JWT signing secrets

	AccessTTLMin       int // access token TTL in minutes (patient/admin)
	DoctorAccessTTLMin int // access token TTL in minutes (doctor, intentionally shorter)
	RefreshTTLDays     int // refresh token TTL in days (all roles)
	OTPTTLSec          int // signup OTP TTL in seconds
	SignupDataTTLMin   int // pending signup payload TTL in minutes
	ResetTTLMin        int // password reset token TTL in minutes (patient/admin)
	DoctorResetTTLMin  int // password reset token TTL in minutes (doctor)
	BcryptCost         int // bcrypt cost for password hashing

	SMTPHost     string // outbound mail server host
	SMTPPort     string // outbound mail server port
	SMTPUser     string // optional SMTP auth user
	SMTPPassword string // optional SMTP auth password
	EmailFrom    string // From address on transactional mail
	ResetURLBase string // frontend URL the reset link points at
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  TTLs have sensible
// defaults so only secrets and connection details are mandatory.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),
		Secrets: utils.SecretSet{
			AccessSecret:        must("JWT_ACCESS_SECRET"),
			RefreshSecret:       must("JWT_REFRESH_SECRET"),
			DoctorAccessSecret:  must("JWT_DOCTOR_ACCESS_SECRET"),
			DoctorRefreshSecret: must("JWT_DOCTOR_REFRESH_SECRET"),
		},
		AccessTTLMin:       envInt("ACCESS_TOKEN_TTL_MIN", 15),
		DoctorAccessTTLMin: envInt("DOCTOR_ACCESS_TOKEN_TTL_MIN", 5),
		RefreshTTLDays:     envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		OTPTTLSec:          envInt("SIGNUP_OTP_TTL_SEC", 90),
		SignupDataTTLMin:   envInt("SIGNUP_DATA_TTL_MIN", 7),
		ResetTTLMin:        envInt("RESET_TOKEN_TTL_MIN", 60),
		DoctorResetTTLMin:  envInt("DOCTOR_RESET_TOKEN_TTL_MIN", 5),
		BcryptCost:         envInt("BCRYPT_COST", 12),
		SMTPHost:           must("SMTP_HOST"),
		SMTPPort:           envStr("SMTP_PORT", "587"),
		SMTPUser:           os.Getenv("SMTP_USER"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		EmailFrom:          must("EMAIL_FROM"),
		ResetURLBase:       must("RESET_URL_BASE"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	log.Fatalf("invalid int for %s: %q", k, v)
	return d
}
