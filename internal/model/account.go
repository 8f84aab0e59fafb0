package model

import "time"

// Role identifies which account collection a record belongs to.  Every
// account carries exactly one role and the role never changes after the
// account is created.  Signing secrets, cookie names and token TTLs are
// all selected by role.
type Role string

const (
	RolePatient Role = "patient" // regular portal user
	RoleDoctor  Role = "doctor"  // medical staff; shorter sessions, separate secrets
	RoleAdmin   Role = "admin"   // back-office operator
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor || r == RoleAdmin
}

// Account represents a row in one of the per-role tables (patients,
// doctors, admins).  The shape is shared: identity, credentials and the
// blocked flag are common, while the doctor and patient specific columns
// are simply empty for the other roles.  PasswordHash is never serialized
// outward; handlers build their own response types.
//
// Fields:
//  ID             – opaque UUID primary key, stable for the account's lifetime.
//  Username       – display/login name; unique per patients table.
//  Email          – unique login identifier per table.
//  PasswordHash   – bcrypt digest of the password.
//  Role           – patient, doctor or admin; fixed at creation.
//  Blocked        – set only through admin actions; blocks protected access.
//  Specialization – doctor only.
//  LicenseNumber  – doctor only; unique per doctors table.
//  PhoneNumber, DateOfBirth, Gender, Address – patient profile fields.
//  LastLogin      – updated on each successful login (nullable).
//  CreatedAt, UpdatedAt – system managed timestamps.
type Account struct {
	ID             string     // <table>.id (UUID)
	Username       string     // <table>.username
	Email          string     // <table>.email
	PasswordHash   string     // <table>.password_hash, never leaves the server
	Role           Role       // fixed at creation
	Blocked        bool       // <table>.blocked
	Specialization string     // doctors.specialization
	LicenseNumber  string     // doctors.license_number
	PhoneNumber    string     // patients.phone_number
	DateOfBirth    string     // patients.date_of_birth
	Gender         string     // patients.gender
	Address        string     // patients.address
	LastLogin      *time.Time // <table>.last_login (nullable)
	CreatedAt      time.Time  // <table>.created_at
	UpdatedAt      time.Time  // <table>.updated_at
}

// SignupData is the pending registration payload staged in the ephemeral
// store between send-otp and verify-otp.  The password is still plaintext
// at this stage; it is hashed exactly once when the account is
// materialized.  The payload lives behind a short TTL and must never be
// logged.
type SignupData struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Specialization string `json:"specialization,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Address        string `json:"address,omitempty"`
}
