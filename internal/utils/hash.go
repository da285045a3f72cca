package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"strings"
)

const DefaultVerificationCodeLength = 5

// UniqueString returns size random bytes from crypto/rand encoded as
// unpadded URL-safe base64.
func UniqueString(size int) (string, error) {
	buffer := make([]byte, size)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GenerateVerificationCode returns a numeric code meant to be typed by a
// human. Codes are not unique; lookups are always scoped to a user.
func GenerateVerificationCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultVerificationCodeLength
	}
	ten := big.NewInt(10)
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// HashToken returns a keyed digest of token so stored codes cannot be read
// back without the server secret.
func HashToken(token string, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
