package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// GenerateOTP returns a numeric one-time code with the given number of
// digits, drawn uniformly from crypto/rand.  Leading zeros are kept: a
// 6-digit OTP is always exactly 6 characters.
func GenerateOTP(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}
	var b strings.Builder
	b.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// GenerateResetToken returns a 32-byte secure random token encoded as a
// 64-character hex string.  Reset tokens are opaque: they carry no claims
// and are validated only by exact comparison against the stored value.
func GenerateResetToken() (string, error) {
	return randomHex(32)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
