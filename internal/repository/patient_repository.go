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

// PatientRepo manages the 'patients' table.
type PatientRepo struct{ DB *sql.DB }

func NewPatientRepo(db *sql.DB) *PatientRepo { return &PatientRepo{DB: db} }

func (r *PatientRepo) Role() model.Role { return model.RolePatient }

const patientCols = "id,username,email,password_hash,blocked,phone_number,date_of_birth,gender,address,last_login,created_at,updated_at"

func scanPatient(row *sql.Row) (model.Account, error) {
	var (
		a         model.Account
		lastLogin sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Blocked,
		&a.PhoneNumber, &a.DateOfBirth, &a.Gender, &a.Address,
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
	a.Role = model.RolePatient
	return a, nil
}

// Create inserts a patient.  Email and username uniqueness are checked
// explicitly before the insert so callers get a clean sentinel error
// instead of a driver constraint violation; the unique indexes remain the
// last line of defense against races.
func (r *PatientRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Username = strings.TrimSpace(a.Username)
	if _, err := r.FindByEmail(ctx, a.Email); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := r.FindByUsername(ctx, a.Username); err == nil {
		return ErrUsernameExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO patients (id, username, email, password_hash, phone_number, date_of_birth, gender, address) VALUES (?,?,?,?,?,?,?,?)",
		a.ID, a.Username, a.Email, a.PasswordHash, a.PhoneNumber, a.DateOfBirth, a.Gender, a.Address)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	a.Role = model.RolePatient
	return nil
}

// FindByEmail fetches a patient by normalized email.
func (r *PatientRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanPatient(r.DB.QueryRowContext(ctx,
		"SELECT "+patientCols+" FROM patients WHERE email=? LIMIT 1", email))
}

// FindByUsername fetches a patient by username.
func (r *PatientRepo) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	return scanPatient(r.DB.QueryRowContext(ctx,
		"SELECT "+patientCols+" FROM patients WHERE username=? LIMIT 1", strings.TrimSpace(username)))
}

// FindByID fetches a patient by id.
func (r *PatientRepo) FindByID(ctx context.Context, id string) (model.Account, error) {
	return scanPatient(r.DB.QueryRowContext(ctx,
		"SELECT "+patientCols+" FROM patients WHERE id=? LIMIT 1", id))
}

// UpdatePassword writes only the password hash column.
func (r *PatientRepo) UpdatePassword(ctx context.Context, id, newHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE patients SET password_hash=? WHERE id=?", newHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil fields of patch.
func (r *PatientRepo) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+"=?")
			args = append(args, *v)
		}
	}
	add("username", patch.Username)
	add("phone_number", patch.PhoneNumber)
	add("date_of_birth", patch.DateOfBirth)
	add("gender", patch.Gender)
	add("address", patch.Address)
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE patients SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrUsernameExists
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBlocked flips the blocked flag.
func (r *PatientRepo) SetBlocked(ctx context.Context, id string, blocked bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE patients SET blocked=? WHERE id=?", blocked, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsBlocked reports the current blocked flag.
func (r *PatientRepo) IsBlocked(ctx context.Context, id string) (bool, error) {
	var blocked bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT blocked FROM patients WHERE id=? LIMIT 1", id).Scan(&blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	return blocked, err
}

// TouchLastLogin stamps last_login with the current UTC time.
func (r *PatientRepo) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE patients SET last_login=? WHERE id=?", time.Now().UTC(), id)
	return err
}

// List returns all patients, newest first.
func (r *PatientRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+patientCols+" FROM patients ORDER BY created_at DESC")
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
			&a.PhoneNumber, &a.DateOfBirth, &a.Gender, &a.Address,
			&lastLogin, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			a.LastLogin = &t
		}
		a.Role = model.RolePatient
		out = append(out, a)
	}
	return out, rows.Err()
}
