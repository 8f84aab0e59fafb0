package repository

import (
	"context"

	"github.com/carelink/portal-auth/internal/model"
)

// ProfilePatch carries optional profile updates.  Nil fields are left
// untouched.  Password and role are deliberately absent: the password has
// its own update path and the role is immutable after creation.
type ProfilePatch struct {
	Username       *string
	PhoneNumber    *string
	DateOfBirth    *string
	Gender         *string
	Address        *string
	Specialization *string
}

// AccountStore is the contract each per-role repository satisfies.  The
// services are written against this interface so they can serve any role
// and be tested with in-memory fakes.
type AccountStore interface {
	// Role reports which collection this store manages.
	Role() model.Role
	// Create inserts a new account.  ID and timestamps are filled in by
	// the store.  Conflicting email/username/license produce the sentinel
	// errors from this package rather than driver errors.
	Create(ctx context.Context, a *model.Account) error
	// FindByEmail returns the account with the given (normalized) email,
	// or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	// FindByUsername returns the account with the given username, or
	// ErrNotFound.  Only meaningful for patients; other stores may always
	// return ErrNotFound.
	FindByUsername(ctx context.Context, username string) (model.Account, error)
	// FindByID returns the account with the given ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (model.Account, error)
	// UpdatePassword replaces only the password hash.  It bypasses the
	// generic profile path so a bulk update can never write a password.
	UpdatePassword(ctx context.Context, id, newHash string) error
	// UpdateProfile applies a partial profile update.
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error
	// SetBlocked flips the blocked flag.  Only admin flows call this.
	SetBlocked(ctx context.Context, id string, blocked bool) error
	// IsBlocked reports the current blocked flag, or ErrNotFound.
	IsBlocked(ctx context.Context, id string) (bool, error)
	// TouchLastLogin stamps last_login with the current time.
	TouchLastLogin(ctx context.Context, id string) error
	// List returns every account in the collection, newest first.
	List(ctx context.Context) ([]model.Account, error)
}
