package utils

import "golang.org/x/crypto/bcrypt"

// MinBcryptCost is the lowest cost factor accepted for password hashing.
// Configs asking for less are bumped up to this value.
const MinBcryptCost = 10

// HashPassword returns the bcrypt hash of plain using the given cost.
// Hashing happens exactly once, at account creation or password reset;
// stored hashes are never re-hashed on read.
func HashPassword(plain string, cost int) (string, error) {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
