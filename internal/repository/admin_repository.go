package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/portal-auth/internal/model"
)

// AdminRepo manages the 'admins' table.  Admin accounts are provisioned
// out of band (there is no admin signup flow), so Create exists mainly
// for seeding and tests.
type AdminRepo struct{ DB *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{DB: db} }

func (r *AdminRepo) Role() model.Role { return model.RoleAdmin }

const adminCols = "id,username,email,password_hash,blocked,last_login,created_at,updated_at"

func scanAdmin(row *sql.Row) (model.Account, error) {
	var (
		a         model.Account
		lastLogin sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Blocked,
		&lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLogin = &t
	}
	a.Role = model.RoleAdmin
	return a, nil
}

// Create inserts an admin after an explicit email uniqueness check.
func (r *AdminRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if _, err := r.FindByEmail(ctx, a.Email); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO admins (id, username, email, password_hash) VALUES (?,?,?,?)",
		a.ID, strings.TrimSpace(a.Username), a.Email, a.PasswordHash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	a.Role = model.RoleAdmin
	return nil
}

// FindByEmail fetches an admin by normalized email.
func (r *AdminRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanAdmin(r.DB.QueryRowContext(ctx,
		"SELECT "+adminCols+" FROM admins WHERE email=? LIMIT 1", email))
}

// FindByUsername fetches an admin by name.
func (r *AdminRepo) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	return scanAdmin(r.DB.QueryRowContext(ctx,
		"SELECT "+adminCols+" FROM admins WHERE username=? LIMIT 1", strings.TrimSpace(username)))
}

// FindByID fetches an admin by id.
func (r *AdminRepo) FindByID(ctx context.Context, id string) (model.Account, error) {
	return scanAdmin(r.DB.QueryRowContext(ctx,
		"SELECT "+adminCols+" FROM admins WHERE id=? LIMIT 1", id))
}

// UpdatePassword writes only the password hash column.
func (r *AdminRepo) UpdatePassword(ctx context.Context, id, newHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE admins SET password_hash=? WHERE id=?", newHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil fields of patch.
func (r *AdminRepo) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error {
	if patch.Username == nil {
		return nil
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE admins SET username=? WHERE id=?", *patch.Username, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBlocked flips the blocked flag.
func (r *AdminRepo) SetBlocked(ctx context.Context, id string, blocked bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE admins SET blocked=? WHERE id=?", blocked, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsBlocked reports the current blocked flag.
func (r *AdminRepo) IsBlocked(ctx context.Context, id string) (bool, error) {
	var blocked bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT blocked FROM admins WHERE id=? LIMIT 1", id).Scan(&blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	return blocked, err
}

// TouchLastLogin stamps last_login with the current UTC time.
func (r *AdminRepo) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE admins SET last_login=? WHERE id=?", time.Now().UTC(), id)
	return err
}

// List returns all admins, newest first.
func (r *AdminRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+adminCols+" FROM admins ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var (
			a         model.Account
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Blocked,
			&lastLogin, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			a.LastLogin = &t
		}
		a.Role = model.RoleAdmin
		out = append(out, a)
	}
	return out, rows.Err()
}
