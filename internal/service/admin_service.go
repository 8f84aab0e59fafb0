package service

import (
	"context"
	"time"

	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/queue"
	"github.com/carelink/portal-auth/internal/repository"
)

// AdminService implements the back-office account actions: listing
// patients and doctors and flipping their blocked flag.  Blocking also
// revokes the live refresh token and drops the cached blocked flag, so
// the lockout takes effect on the next request rather than on the next
// cache expiry or token refresh.
type AdminService struct {
	patients repository.AccountStore
	doctors  repository.AccountStore
	tokens   *repository.TokenRepo
	events   Publisher
}

func NewAdminService(patients, doctors repository.AccountStore, tokens *repository.TokenRepo, events Publisher) *AdminService {
	return &AdminService{patients: patients, doctors: doctors, tokens: tokens, events: events}
}

func (s *AdminService) store(role model.Role) repository.AccountStore {
	if role == model.RoleDoctor {
		return s.doctors
	}
	return s.patients
}

// ListAccounts returns every account of the given role.
func (s *AdminService) ListAccounts(ctx context.Context, role model.Role) ([]model.Account, error) {
	return s.store(role).List(ctx)
}

// SetBlocked blocks or unblocks an account.
func (s *AdminService) SetBlocked(ctx context.Context, role model.Role, id string, blocked bool) error {
	st := s.store(role)
	if err := st.SetBlocked(ctx, id, blocked); err != nil {
		return err
	}
	// Make the change visible immediately: drop the middleware's cached
	// flag and kill the live session.
	_ = s.tokens.InvalidateBlocked(ctx, role, id)
	if blocked {
		_ = s.tokens.DeleteRefreshToken(ctx, role, id)
	}
	if s.events != nil {
		typ := queue.EventAccountUnblocked
		if blocked {
			typ = queue.EventAccountBlocked
		}
		a, err := st.FindByID(ctx, id)
		email := ""
		if err == nil {
			email = a.Email
		}
		_ = s.events.Publish(ctx, queue.AuthEvent{
			Type:       typ,
			Role:       string(role),
			UserID:     id,
			Email:      email,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return nil
}
