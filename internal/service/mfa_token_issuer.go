package service

import (
	"time"

	"describly/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

// MFATokenIssuerJWT signs the short lived challenge handed out between the
// password step and the TOTP step of a login.
type MFATokenIssuerJWT struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	Now       func() time.Time
}

type mfaClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func (m MFATokenIssuerJWT) IssueMFAToken(userID uint) (string, time.Duration, error) {
	ttl := m.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	claims := mfaClaims{
		Type: "mfa",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   utils.EncodeID(userID),
			ExpiresAt: jwt.NewNumericDate(m.now().Add(ttl)),
		},
	}
	signed, err := utils.GenerateToken(claims, m.Secret, m.Algorithm)
	if err != nil {
		return "", 0, err
	}
	return signed, ttl, nil
}

func (m MFATokenIssuerJWT) ParseMFAToken(token string) (uint, error) {
	claims := &mfaClaims{}
	if err := utils.GetTokenPayload(token, claims, m.Secret, m.Algorithm, m.Now); err != nil {
		return 0, ErrInvalidMFAToken
	}
	if claims.Type != "mfa" {
		return 0, ErrInvalidMFAToken
	}
	id, err := utils.DecodeID(claims.Subject)
	if err != nil {
		return 0, ErrInvalidMFAToken
	}
	return id, nil
}

func (m MFATokenIssuerJWT) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
