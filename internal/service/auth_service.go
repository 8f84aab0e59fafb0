package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/queue"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/utils"
)

// TokenPair is an access/refresh token pair issued together.  The access
// token goes back to the client in both a cookie and the JSON body; the
// refresh token is cookie-only.
type TokenPair struct {
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

// Publisher pushes auth events onto the message broker.  Publishing is
// fire-and-forget from the flows' point of view: errors are logged by the
// publisher and ignored by callers.
type Publisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// AuthService implements login, logout and refresh-token rotation for a
// single role.  One instance is constructed per role at startup, each
// wired to its own account store and to the role-appropriate signing
// secrets; the logic is identical across roles except for TTLs and
// secrets.
type AuthService struct {
	accounts   repository.AccountStore
	tokens     *repository.TokenRepo
	secrets    utils.SecretSet
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	events     Publisher
}

func NewAuthService(accounts repository.AccountStore, tokens *repository.TokenRepo,
	secrets utils.SecretSet, accessTTL, refreshTTL time.Duration, bcryptCost int, events Publisher) *AuthService {
	return &AuthService{
		accounts:   accounts,
		tokens:     tokens,
		secrets:    secrets,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		bcryptCost: bcryptCost,
		events:     events,
	}
}

// Role reports the role this service instance authenticates.
func (s *AuthService) Role() model.Role { return s.accounts.Role() }

// IssueTokens signs a fresh access/refresh pair for the account and
// stores the refresh token as the single live one for that user,
// displacing any previous value.
func (s *AuthService) IssueTokens(ctx context.Context, a model.Account) (TokenPair, error) {
	role := s.Role()
	access, err := utils.NewAccessToken(s.secrets.Secret(role, utils.KindAccess), a.ID, a.Email, role, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.secrets.Secret(role, utils.KindRefresh), a.ID, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.StoreRefreshToken(ctx, role, a.ID, refresh.Token, s.refreshTTL); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Register creates an account directly, without the OTP gate, and logs
// the user straight in.  The OTP signup flow calls the same store; this
// path exists for flows where email ownership is established elsewhere.
func (s *AuthService) Register(ctx context.Context, data model.SignupData) (model.Account, TokenPair, error) {
	hash, err := utils.HashPassword(data.Password, s.bcryptCost)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	a := model.Account{
		Username:       data.Username,
		Email:          data.Email,
		PasswordHash:   hash,
		Specialization: data.Specialization,
		LicenseNumber:  data.LicenseNumber,
		PhoneNumber:    data.PhoneNumber,
		DateOfBirth:    data.DateOfBirth,
		Gender:         data.Gender,
		Address:        data.Address,
	}
	if err := s.accounts.Create(ctx, &a); err != nil {
		return model.Account{}, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, a)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	s.publish(ctx, queue.EventAccountCreated, a)
	return a, pair, nil
}

// Login verifies credentials and returns the account with a fresh token
// pair.  Unknown email and wrong password are indistinguishable to the
// caller; blocked accounts are rejected before any token is issued.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.Account, TokenPair, error) {
	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, TokenPair{}, ErrInvalidCredentials
		}
		return model.Account{}, TokenPair{}, err
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		return model.Account{}, TokenPair{}, ErrInvalidCredentials
	}
	if a.Blocked {
		return model.Account{}, TokenPair{}, ErrAccountBlocked
	}
	pair, err := s.IssueTokens(ctx, a)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	if err := s.accounts.TouchLastLogin(ctx, a.ID); err != nil {
		log.Printf("auth: touch last_login for %s failed: %v", a.ID, err) // non-fatal
	}
	return a, pair, nil
}

// Logout revokes the stored refresh token for the user.  The access token
// keeps verifying until its short TTL elapses; the refresh token dies now.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.tokens.DeleteRefreshToken(ctx, s.Role(), userID)
}

// Refresh rotates a refresh token.  The presented token must pass
// signature verification AND equal the single value currently stored for
// the user; either failing yields ErrInvalidRefreshToken, so a token
// replayed after logout or after a previous rotation is dead even though
// its signature still verifies.  On success both tokens are reissued and
// the new refresh token replaces the old one (full rotation).
func (s *AuthService) Refresh(ctx context.Context, raw string) (model.Account, TokenPair, error) {
	role := s.Role()
	claims, err := utils.VerifyToken(s.secrets.Secret(role, utils.KindRefresh), raw)
	if err != nil {
		return model.Account{}, TokenPair{}, ErrInvalidRefreshToken
	}
	stored, err := s.tokens.GetRefreshToken(ctx, role, claims.UserID)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	if stored == "" || stored != raw {
		return model.Account{}, TokenPair{}, ErrInvalidRefreshToken
	}
	a, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, TokenPair{}, ErrInvalidRefreshToken
		}
		return model.Account{}, TokenPair{}, err
	}
	if a.Blocked {
		return model.Account{}, TokenPair{}, ErrAccountBlocked
	}
	pair, err := s.IssueTokens(ctx, a)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	return a, pair, nil
}

// GetAccount loads the current account record by id.
func (s *AuthService) GetAccount(ctx context.Context, id string) (model.Account, error) {
	return s.accounts.FindByID(ctx, id)
}

// UpdateProfile applies a partial profile update and returns the fresh
// record.  The patch cannot carry a password or role; those have their
// own paths.
func (s *AuthService) UpdateProfile(ctx context.Context, id string, patch repository.ProfilePatch) (model.Account, error) {
	if err := s.accounts.UpdateProfile(ctx, id, patch); err != nil {
		return model.Account{}, err
	}
	return s.accounts.FindByID(ctx, id)
}

func (s *AuthService) publish(ctx context.Context, typ string, a model.Account) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, queue.AuthEvent{
		Type:       typ,
		Role:       string(s.Role()),
		UserID:     a.ID,
		Email:      a.Email,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}
