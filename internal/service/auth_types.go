package service

import (
	"context"
	"time"

	"describly/internal/utils"
)

type AuthConfig struct {
	AppName              string
	FrontendHost         string
	VerificationCodeTTL  time.Duration
	PasswordResetCodeTTL time.Duration
	MFAIssuer            string
}

// EmailSender delivers a rendered template. data is the template context.
type EmailSender interface {
	SendTemplatedEmail(ctx context.Context, recipient string, templateKey string, data map[string]any) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type TokenIssuer interface {
	IssueAccessToken(userID uint, accessKey string, tokenID uint, fullName string) (string, time.Duration, error)
	IssueRefreshToken(userID uint, refreshKey string, accessKey string) (string, time.Duration, error)
	ParseAccessToken(token string) (AccessIdentity, error)
	ParseRefreshToken(token string) (RefreshIdentity, error)
}

type MFATokenIssuer interface {
	IssueMFAToken(userID uint) (string, time.Duration, error)
	ParseMFAToken(token string) (uint, error)
}

type MFAProvider interface {
	GenerateSecret(accountName string) (string, error)
	QRCodeURL(email string, issuer string, secret string) (string, error)
	ValidateCode(secret string, code string, at time.Time) bool
}

// EventRecorder counts security events, typically backed by Prometheus.
type EventRecorder interface {
	RecordSecurityEvent(action string)
}

type Clock interface {
	Now() time.Time
}

// RealClock reports wall time in UTC; every persisted timestamp uses it.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Argon2PasswordHasher hashes new passwords with argon2id and still accepts
// legacy bcrypt hashes on verify.
type Argon2PasswordHasher struct {
	Params utils.Argon2Params
}

func (h Argon2PasswordHasher) Hash(password string) (string, error) {
	params := h.Params
	if params.Memory == 0 {
		params = utils.DefaultArgon2Params
	}
	return utils.HashPasswordWithParams(password, params)
}

func (h Argon2PasswordHasher) Verify(hash string, password string) bool {
	return utils.VerifyPassword(password, hash)
}
