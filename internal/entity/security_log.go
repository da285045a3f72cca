package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SecurityAction string

const (
	Register               SecurityAction = "register"
	Activate               SecurityAction = "activate"
	LoginSuccess           SecurityAction = "login_success"
	LoginFailed            SecurityAction = "login_failed"
	TokenRefreshed         SecurityAction = "refresh"
	Logout                 SecurityAction = "logout"
	PasswordResetRequested SecurityAction = "password_reset_requested"
	Reset                  SecurityAction = "password_reset"
	OAuthLogin             SecurityAction = "oauth_login"
	MFAFailed              SecurityAction = "mfa_failed"
	MFAEnabled             SecurityAction = "mfa_enabled"
	MFADisabled            SecurityAction = "mfa_disabled"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID *uint `gorm:"index"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(40);not null;index"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}

func (l *SecurityLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
