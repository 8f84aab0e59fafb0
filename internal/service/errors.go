// Package service implements the auth flows: login/logout/refresh, the
// OTP-gated signup, the password reset sequence and the admin account
// actions.  Services translate repository and crypto failures into the
// sentinel errors below; handlers map those onto HTTP status codes and
// safe messages.
package service

import "errors"

// ErrInvalidCredentials covers both "unknown email" and "wrong password".
// The two cases are deliberately indistinguishable to the client.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrAccountBlocked is returned when a blocked account attempts to
// authenticate or reach a protected resource.
var ErrAccountBlocked = errors.New("account is blocked")

// ErrInvalidRefreshToken is returned when a presented refresh token fails
// signature verification OR does not match the single value currently
// stored for that user.  Store-side revocation wins over signature
// validity.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// ErrNoPendingSignup is returned by resend-otp when no staged signup
// payload is live for the email.
var ErrNoPendingSignup = errors.New("no pending signup found for this email")

// ErrOTPExpired is returned when no OTP key is live for the email.
var ErrOTPExpired = errors.New("otp expired or invalid")

// ErrOTPMismatch is returned on a wrong code.  The staged payload is left
// untouched so the user can retry or request a resend.
var ErrOTPMismatch = errors.New("incorrect otp")

// ErrSignupDataExpired is returned when the OTP matched but the staged
// payload already expired; no account is created in that case.
var ErrSignupDataExpired = errors.New("signup data not found or expired")

// ErrResetTokenInvalid is returned when a password reset token is
// missing, expired or mismatched.  All three collapse into one error.
var ErrResetTokenInvalid = errors.New("invalid or expired reset token")
