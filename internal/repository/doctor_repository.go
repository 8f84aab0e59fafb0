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

// DoctorRepo manages the 'doctors' table.  Doctors additionally carry a
// specialization and a unique license number.
type DoctorRepo struct{ DB *sql.DB }

func NewDoctorRepo(db *sql.DB) *DoctorRepo { return &DoctorRepo{DB: db} }

func (r *DoctorRepo) Role() model.Role { return model.RoleDoctor }

const doctorCols = "id,username,email,password_hash,blocked,specialization,license_number,last_login,created_at,updated_at"

func scanDoctor(row *sql.Row) (model.Account, error) {
	var (
		a         model.Account
		lastLogin sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Blocked,
		&a.Specialization, &a.LicenseNumber, &lastLogin, &a.CreatedAt, &a.UpdatedAt)
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
	a.Role = model.RoleDoctor
	return a, nil
}

// Create inserts a doctor after explicit email and license-number
// uniqueness checks.
func (r *DoctorRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if _, err := r.FindByEmail(ctx, a.Email); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if a.LicenseNumber != "" {
		var n int
		err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM doctors WHERE license_number=?", a.LicenseNumber).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrLicenseExists
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO doctors (id, username, email, password_hash, specialization, license_number) VALUES (?,?,?,?,?,?)",
		a.ID, strings.TrimSpace(a.Username), a.Email, a.PasswordHash, a.Specialization, a.LicenseNumber)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	a.Role = model.RoleDoctor
	return nil
}

// FindByEmail fetches a doctor by normalized email.
func (r *DoctorRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanDoctor(r.DB.QueryRowContext(ctx,
		"SELECT "+doctorCols+" FROM doctors WHERE email=? LIMIT 1", email))
}

// FindByUsername fetches a doctor by display name.  Doctor names are not
// unique, so this returns the first match and exists mainly to satisfy
// the AccountStore contract.
func (r *DoctorRepo) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	return scanDoctor(r.DB.QueryRowContext(ctx,
		"SELECT "+doctorCols+" FROM doctors WHERE username=? LIMIT 1", strings.TrimSpace(username)))
}

// FindByID fetches a doctor by id.
func (r *DoctorRepo) FindByID(ctx context.Context, id string) (model.Account, error) {
	return scanDoctor(r.DB.QueryRowContext(ctx,
		"SELECT "+doctorCols+" FROM doctors WHERE id=? LIMIT 1", id))
}

// UpdatePassword writes only the password hash column.
func (r *DoctorRepo) UpdatePassword(ctx context.Context, id, newHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE doctors SET password_hash=? WHERE id=?", newHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil fields of patch.
func (r *DoctorRepo) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error {
	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if patch.Username != nil {
		sets = append(sets, "username=?")
		args = append(args, *patch.Username)
	}
	if patch.Specialization != nil {
		sets = append(sets, "specialization=?")
		args = append(args, *patch.Specialization)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE doctors SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBlocked flips the blocked flag.
func (r *DoctorRepo) SetBlocked(ctx context.Context, id string, blocked bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE doctors SET blocked=? WHERE id=?", blocked, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsBlocked reports the current blocked flag.
func (r *DoctorRepo) IsBlocked(ctx context.Context, id string) (bool, error) {
	var blocked bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT blocked FROM doctors WHERE id=? LIMIT 1", id).Scan(&blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	return blocked, err
}

// TouchLastLogin stamps last_login with the current UTC time.
func (r *DoctorRepo) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE doctors SET last_login=? WHERE id=?", time.Now().UTC(), id)
	return err
}

// List returns all doctors, newest first.
func (r *DoctorRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+doctorCols+" FROM doctors ORDER BY created_at DESC")
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
			&a.Specialization, &a.LicenseNumber, &lastLogin, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			a.LastLogin = &t
		}
		a.Role = model.RoleDoctor
		out = append(out, a)
	}
	return out, rows.Err()
}
