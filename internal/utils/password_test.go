package utils

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 10)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("password stored in plaintext")
	}
	if !VerifyPassword(hash, "s3cret-pass") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "wrong-pass") {
		t.Fatal("wrong password accepted")
	}
}

func TestHashPasswordEnforcesCostFloor(t *testing.T) {
	// A cost below the floor still produces a verifiable hash.
	hash, err := HashPassword("another-pass", 1)
	if err != nil {
		t.Fatalf("hash with low cost: %v", err)
	}
	if !VerifyPassword(hash, "another-pass") {
		t.Fatal("hash produced with floored cost did not verify")
	}
}
