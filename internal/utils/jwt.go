package utils // package utils provides token creation, verification and generators

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
	"github.com/google/uuid"

	"github.com/carelink/portal-auth/internal/model"
)

// TokenKind selects which signing secret a token is issued and verified
// with.  Access and refresh tokens never share a secret, so a refresh
// token can never be presented where an access token is expected.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, wrong signing method, expired, or malformed claims.
// Callers must not distinguish these cases to the client.
var ErrInvalidToken = errors.New("invalid or expired token")

// SecretSet holds the process-wide signing secrets, one per (role, kind)
// pair.  Doctor tokens are signed with their own secrets so that a doctor
// token can never verify against the patient/admin secret and vice versa;
// this is a deliberate isolation boundary, not an optimization.  The set
// is built once at startup and read-only afterwards.
type SecretSet struct {
	AccessSecret        string // patient + admin access tokens
	RefreshSecret       string // patient + admin refresh tokens
	DoctorAccessSecret  string // doctor access tokens
	DoctorRefreshSecret string // doctor refresh tokens
}

// Secret returns the signing secret for the given role and token kind.
func (s SecretSet) Secret(role model.Role, kind TokenKind) string {
	if role == model.RoleDoctor {
		if kind == KindRefresh {
			return s.DoctorRefreshSecret
		}
		return s.DoctorAccessSecret
	}
	if kind == KindRefresh {
		return s.RefreshSecret
	}
	return s.AccessSecret
}

// Claims is the verified content of a token.  Refresh tokens carry only
// the subject; access tokens additionally carry email and role.
type Claims struct {
	UserID string
	Email  string
	Role   model.Role
}

// SignedToken is a signed JWT together with its expiry.  The Token field
// is what clients present in the Authorization header or cookie.
type SignedToken struct {
	Token string    // serialized JWT
	Exp   time.Time // UTC expiration time
}

// NewAccessToken signs an HS256 access token for an account.  Claims are
// sub (account ID), email, role, exp and iat.  The TTL differs per role:
// doctor sessions are deliberately shorter than patient/admin ones.
func NewAccessToken(secret, userID, email string, role model.Role, ttl time.Duration) (SignedToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  string(role),
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken signs an HS256 refresh token carrying the subject and a
// unique jti.  The signed string is also the value persisted in the
// ephemeral store; a presented refresh token must match that stored value
// exactly, so a valid signature is not sufficient on its own.  exp and
// iat have second granularity, so without the jti a rotation performed
// within the same second as the prior issuance would sign the
// byte-identical token and the displaced one would stay live.
func NewRefreshToken(secret, userID string, ttl time.Duration) (SignedToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": uuid.NewString(),
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyToken parses and validates a signed token against the given
// secret and returns its claims.  Only the HMAC signing method is
// accepted; anything else is rejected before the secret is even used.
// All failure modes collapse into ErrInvalidToken.
func VerifyToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	c := Claims{UserID: sub}
	if v, ok := mc["email"].(string); ok {
		c.Email = v
	}
	if v, ok := mc["role"].(string); ok {
		c.Role = model.Role(v)
	}
	return c, nil
}
