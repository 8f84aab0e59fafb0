// Package repository contains the durable account repositories (MySQL)
// and the ephemeral token repository (Redis).  Sentinel errors defined
// here let handlers distinguish failure scenarios without inspecting
// driver errors: conflicts map to HTTP 400/409, ErrNotFound to 404.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no account.  Login paths
// must not forward this to the client as-is; they collapse it into a
// generic invalid-credentials message to avoid account enumeration.
var ErrNotFound = errors.New("account not found")

// ErrEmailExists is returned by Create when the email is already taken.
var ErrEmailExists = errors.New("email already registered")

// ErrUsernameExists is returned by Create when the username is already taken.
var ErrUsernameExists = errors.New("username already taken")

// ErrLicenseExists is returned by Create when the medical license number
// is already registered to another doctor.
var ErrLicenseExists = errors.New("license number already registered")
