package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carelink/portal-auth/internal/model"
)

// TokenRepo is the ephemeral token store.  Every transient auth artifact
// lives here behind a per-key TTL enforced by Redis itself: refresh
// tokens, signup OTPs, staged signup payloads, password reset tokens and
// the short-lived blocked-flag cache.
//
// Keys are namespaced by purpose and role so flows can never collide:
//
//	refresh_token:<role>:<userID>
//	signup_otp:<role>:<email>
//	signup_data:<role>:<email>
//	reset_token:<role>:<userID>
//	blocked:<role>:<userID>
//
// Expired or absent keys read back as "not there" (empty value, nil
// error); callers never see redis.Nil.
type TokenRepo struct{ RDB *redis.Client }

func NewTokenRepo(rdb *redis.Client) *TokenRepo { return &TokenRepo{RDB: rdb} }

func refreshKey(role model.Role, userID string) string {
	return "refresh_token:" + string(role) + ":" + userID
}
func otpKey(role model.Role, email string) string {
	return "signup_otp:" + string(role) + ":" + email
}
func signupDataKey(role model.Role, email string) string {
	return "signup_data:" + string(role) + ":" + email
}
func resetKey(role model.Role, userID string) string {
	return "reset_token:" + string(role) + ":" + userID
}
func blockedKey(role model.Role, userID string) string {
	return "blocked:" + string(role) + ":" + userID
}

// get wraps GET so that an expired or missing key is an empty string, not
// an error.  TTL is authoritative; there is no in-process timer anywhere.
func (r *TokenRepo) get(ctx context.Context, key string) (string, error) {
	v, err := r.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// StoreRefreshToken saves the single live refresh token for a user.  SET
// overwrites any previous value, which is exactly the invariant we want:
// at most one valid refresh token per user, each new login or rotation
// displacing the last.
func (r *TokenRepo) StoreRefreshToken(ctx context.Context, role model.Role, userID, token string, ttl time.Duration) error {
	return r.RDB.Set(ctx, refreshKey(role, userID), token, ttl).Err()
}

// GetRefreshToken returns the stored refresh token, or "" when none is live.
func (r *TokenRepo) GetRefreshToken(ctx context.Context, role model.Role, userID string) (string, error) {
	return r.get(ctx, refreshKey(role, userID))
}

// DeleteRefreshToken revokes the stored refresh token (logout).
func (r *TokenRepo) DeleteRefreshToken(ctx context.Context, role model.Role, userID string) error {
	return r.RDB.Del(ctx, refreshKey(role, userID)).Err()
}

// StoreSignupOTP saves the one-time signup code.  Regeneration overwrites
// the key, invalidating any previously issued code.
func (r *TokenRepo) StoreSignupOTP(ctx context.Context, role model.Role, email, otp string, ttl time.Duration) error {
	return r.RDB.Set(ctx, otpKey(role, email), otp, ttl).Err()
}

// GetSignupOTP returns the live OTP, or "" when expired or never issued.
func (r *TokenRepo) GetSignupOTP(ctx context.Context, role model.Role, email string) (string, error) {
	return r.get(ctx, otpKey(role, email))
}

// DeleteSignupOTP removes the OTP; called on successful verification so a
// code can never be replayed.
func (r *TokenRepo) DeleteSignupOTP(ctx context.Context, role model.Role, email string) error {
	return r.RDB.Del(ctx, otpKey(role, email)).Err()
}

// StoreSignupData stages the not-yet-committed registration payload as
// JSON.  The payload contains the plaintext password, so it is never
// logged and lives only as long as the TTL.
func (r *TokenRepo) StoreSignupData(ctx context.Context, role model.Role, email string, data model.SignupData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.RDB.Set(ctx, signupDataKey(role, email), raw, ttl).Err()
}

// GetSignupData loads the staged payload, or nil when expired or absent.
func (r *TokenRepo) GetSignupData(ctx context.Context, role model.Role, email string) (*model.SignupData, error) {
	raw, err := r.get(ctx, signupDataKey(role, email))
	if err != nil || raw == "" {
		return nil, err
	}
	var data model.SignupData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DeleteSignupData removes the staged payload once the account exists.
func (r *TokenRepo) DeleteSignupData(ctx context.Context, role model.Role, email string) error {
	return r.RDB.Del(ctx, signupDataKey(role, email)).Err()
}

// StoreResetToken saves the password reset token keyed by account id.
func (r *TokenRepo) StoreResetToken(ctx context.Context, role model.Role, userID, token string, ttl time.Duration) error {
	return r.RDB.Set(ctx, resetKey(role, userID), token, ttl).Err()
}

// GetResetToken returns the live reset token, or "" when expired or absent.
func (r *TokenRepo) GetResetToken(ctx context.Context, role model.Role, userID string) (string, error) {
	return r.get(ctx, resetKey(role, userID))
}

// DeleteResetToken removes the reset token after a successful reset;
// single use is enforced by this deletion, not by a consumed flag.
func (r *TokenRepo) DeleteResetToken(ctx context.Context, role model.Role, userID string) error {
	return r.RDB.Del(ctx, resetKey(role, userID)).Err()
}

// CacheBlocked stores the blocked flag for a short TTL so the middleware
// does not hit MySQL on every protected request.
func (r *TokenRepo) CacheBlocked(ctx context.Context, role model.Role, userID string, blocked bool, ttl time.Duration) error {
	v := "0"
	if blocked {
		v = "1"
	}
	return r.RDB.Set(ctx, blockedKey(role, userID), v, ttl).Err()
}

// GetCachedBlocked returns (blocked, found).  A cache miss is not an error.
func (r *TokenRepo) GetCachedBlocked(ctx context.Context, role model.Role, userID string) (bool, bool, error) {
	v, err := r.RDB.Get(ctx, blockedKey(role, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v == "1", true, nil
}

// InvalidateBlocked drops the cached flag; called whenever an admin flips
// the real one so the change takes effect immediately.
func (r *TokenRepo) InvalidateBlocked(ctx context.Context, role model.Role, userID string) error {
	return r.RDB.Del(ctx, blockedKey(role, userID)).Err()
}
