package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/carelink/portal-auth/internal/mailer"
	"github.com/carelink/portal-auth/internal/queue"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/utils"
)

// PasswordResetService runs the forgot-password flow for one role.  The
// reset token is a 32-byte hex string stored in the ephemeral store keyed
// by account id; the store is the only source of truth for it.  Single
// use is enforced by deleting the key on a successful reset.
type PasswordResetService struct {
	accounts   repository.AccountStore
	tokens     *repository.TokenRepo
	mail       mailer.Sender
	resetTTL   time.Duration
	bcryptCost int
	events     Publisher
}

func NewPasswordResetService(accounts repository.AccountStore, tokens *repository.TokenRepo,
	mail mailer.Sender, resetTTL time.Duration, bcryptCost int, events Publisher) *PasswordResetService {
	return &PasswordResetService{
		accounts:   accounts,
		tokens:     tokens,
		mail:       mail,
		resetTTL:   resetTTL,
		bcryptCost: bcryptCost,
		events:     events,
	}
}

// Request starts a password reset.  When the email does not belong to any
// account the call still reports success, so the endpoint cannot be used
// to probe which addresses are registered.  errors from the mail relay
// do surface: the user is waiting for that mail.
func (s *PasswordResetService) Request(ctx context.Context, email, resetURLBase string) error {
	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil // anti-enumeration: same response as success
		}
		return err
	}
	token, err := utils.GenerateResetToken()
	if err != nil {
		return err
	}
	if err := s.tokens.StoreResetToken(ctx, s.accounts.Role(), a.ID, token, s.resetTTL); err != nil {
		return err
	}
	resetURL := fmt.Sprintf("%s?token=%s&email=%s", resetURLBase, token, url.QueryEscape(a.Email))
	subject, html := mailer.ResetBody(resetURL, int(s.resetTTL.Minutes()))
	return s.mail.Send(ctx, a.Email, subject, html)
}

// VerifyToken reports whether token is the live reset token for the
// account behind email.  Unknown email, expired token and mismatched
// token all collapse into valid=false; the caller learns nothing about
// which one it was.
func (s *PasswordResetService) VerifyToken(ctx context.Context, token, email string) (bool, string, error) {
	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, "", nil
		}
		return false, "", err
	}
	stored, err := s.tokens.GetResetToken(ctx, s.accounts.Role(), a.ID)
	if err != nil {
		return false, "", err
	}
	if stored == "" || stored != token {
		return false, "", nil
	}
	return true, a.ID, nil
}

// Reset re-verifies the token, writes the new password hash through the
// password-only update path and deletes the token so it cannot be used
// twice.
func (s *PasswordResetService) Reset(ctx context.Context, token, email, newPassword string) error {
	valid, userID, err := s.VerifyToken(ctx, token, email)
	if err != nil {
		return err
	}
	if !valid {
		return ErrResetTokenInvalid
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.tokens.DeleteResetToken(ctx, s.accounts.Role(), userID); err != nil {
		log.Printf("reset: delete reset token for %s failed: %v", userID, err)
	}
	// A changed password invalidates the live session as well.
	if err := s.tokens.DeleteRefreshToken(ctx, s.accounts.Role(), userID); err != nil {
		log.Printf("reset: revoke refresh token for %s failed: %v", userID, err)
	}
	if s.events != nil {
		_ = s.events.Publish(ctx, queue.AuthEvent{
			Type:       queue.EventPasswordChanged,
			Role:       string(s.accounts.Role()),
			UserID:     userID,
			Email:      email,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return nil
}
