package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/carelink/portal-auth/internal/mailer"
	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/utils"
)

// SignupService runs the OTP-gated registration flow for one role:
//
//	SendOTP   – stage the form payload, issue a code, mail it
//	ResendOTP – replace the code (payload must still be live)
//	VerifyOTP – check the code, materialize the account, log the user in
//
// The ephemeral store is the single source of truth between the steps;
// nothing durable exists until VerifyOTP succeeds.
type SignupService struct {
	accounts repository.AccountStore
	tokens   *repository.TokenRepo
	auth     *AuthService
	mail     mailer.Sender
	otpTTL   time.Duration
	dataTTL  time.Duration
}

func NewSignupService(accounts repository.AccountStore, tokens *repository.TokenRepo,
	auth *AuthService, mail mailer.Sender, otpTTL, dataTTL time.Duration) *SignupService {
	return &SignupService{
		accounts: accounts,
		tokens:   tokens,
		auth:     auth,
		mail:     mail,
		otpTTL:   otpTTL,
		dataTTL:  dataTTL,
	}
}

// checkConflicts fails when the email or username already belongs to a
// durable account.  Run on initiate AND on resend: an account may have
// been created through another path while the payload sat staged.
func (s *SignupService) checkConflicts(ctx context.Context, data model.SignupData) error {
	if _, err := s.accounts.FindByEmail(ctx, data.Email); err == nil {
		return repository.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if s.accounts.Role() == model.RolePatient && data.Username != "" {
		if _, err := s.accounts.FindByUsername(ctx, data.Username); err == nil {
			return repository.ErrUsernameExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

// SendOTP stages the registration payload and mails a fresh 6-digit code.
// The OTP and the payload are stored before the mail is attempted, so a
// slow send delays the response but never corrupts flow state.
func (s *SignupService) SendOTP(ctx context.Context, data model.SignupData) error {
	if err := s.checkConflicts(ctx, data); err != nil {
		return err
	}
	otp, err := utils.GenerateOTP(6)
	if err != nil {
		return err
	}
	role := s.accounts.Role()
	if err := s.tokens.StoreSignupOTP(ctx, role, data.Email, otp, s.otpTTL); err != nil {
		return err
	}
	if err := s.tokens.StoreSignupData(ctx, role, data.Email, data, s.dataTTL); err != nil {
		return err
	}
	subject, html := mailer.OTPBody(otp, int(s.otpTTL.Seconds()))
	return s.mail.Send(ctx, data.Email, subject, html)
}

// ResendOTP replaces the live code with a new one.  It requires an
// existing staged payload and does not re-stage it: the payload TTL
// bounds how long a signup attempt can stay pending no matter how many
// codes are requested.
func (s *SignupService) ResendOTP(ctx context.Context, email string) error {
	role := s.accounts.Role()
	data, err := s.tokens.GetSignupData(ctx, role, email)
	if err != nil {
		return err
	}
	if data == nil {
		return ErrNoPendingSignup
	}
	if err := s.checkConflicts(ctx, *data); err != nil {
		return err
	}
	if err := s.tokens.DeleteSignupOTP(ctx, role, email); err != nil {
		log.Printf("signup: delete stale otp for %s failed: %v", email, err)
	}
	otp, err := utils.GenerateOTP(6)
	if err != nil {
		return err
	}
	if err := s.tokens.StoreSignupOTP(ctx, role, email, otp, s.otpTTL); err != nil {
		return err
	}
	subject, html := mailer.OTPBody(otp, int(s.otpTTL.Seconds()))
	return s.mail.Send(ctx, email, subject, html)
}

// VerifyOTP checks the submitted code and, on a match, materializes the
// durable account from the staged payload, deletes both ephemeral keys
// and logs the new user in.  A wrong code leaves the payload (and the
// code) untouched.  This is the only path in the flow that creates an
// account; if the payload expired between code entry and verification,
// nothing durable is created.
func (s *SignupService) VerifyOTP(ctx context.Context, email, code string) (model.Account, TokenPair, error) {
	role := s.accounts.Role()
	stored, err := s.tokens.GetSignupOTP(ctx, role, email)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	if stored == "" {
		return model.Account{}, TokenPair{}, ErrOTPExpired
	}
	if stored != code {
		return model.Account{}, TokenPair{}, ErrOTPMismatch
	}
	data, err := s.tokens.GetSignupData(ctx, role, email)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	if data == nil {
		return model.Account{}, TokenPair{}, ErrSignupDataExpired
	}
	if err := s.tokens.DeleteSignupOTP(ctx, role, email); err != nil {
		log.Printf("signup: delete otp for %s failed: %v", email, err)
	}
	a, pair, err := s.auth.Register(ctx, *data)
	if err != nil {
		return model.Account{}, TokenPair{}, err
	}
	if err := s.tokens.DeleteSignupData(ctx, role, email); err != nil {
		log.Printf("signup: delete signup data for %s failed: %v", email, err)
	}
	return a, pair, nil
}
