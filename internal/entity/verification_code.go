package entity

import (
	"time"
)

type VerificationPurpose string

const (
	AccountVerification VerificationPurpose = "account_verification"
	PasswordReset       VerificationPurpose = "password_reset"
)

type VerificationCode struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"not null;index"`
	User   *User

	// CodeHash is the keyed digest of the emailed code; the plaintext is
	// never stored.
	CodeHash string              `gorm:"column:code;type:varchar(64);not null"`
	Purpose  VerificationPurpose `gorm:"type:varchar(50);not null;index"`
	Used     bool                `gorm:"not null;default:false"`

	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index"`
}
