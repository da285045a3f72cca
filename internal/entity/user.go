package entity

import (
	"time"
)

type User struct {
	ID           uint    `gorm:"primaryKey"`
	FullName     string  `gorm:"type:varchar(150);index;not null"`
	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null"`
	MobileNumber *string `gorm:"type:varchar(15);index"`
	PasswordHash *string `gorm:"type:varchar(255)"`

	IsActive   bool       `gorm:"not null;default:false"`
	VerifiedAt *time.Time
	LoggedInAt *time.Time `gorm:"column:loggedin_at"`

	OAuthProvider     *string `gorm:"column:oauth_provider;type:varchar(32);uniqueIndex:idx_users_oauth_identity"`
	OAuthID           *string `gorm:"column:oauth_id;type:varchar(255);uniqueIndex:idx_users_oauth_identity"`
	OAuthAccessToken  *string `gorm:"column:oauth_access_token;type:text"`
	OAuthRefreshToken *string `gorm:"column:oauth_refresh_token;type:text"`
	ProfilePicture    *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Tokens            []UserToken        `gorm:"constraint:OnDelete:CASCADE"`
	VerificationCodes []VerificationCode `gorm:"constraint:OnDelete:CASCADE"`
	MFASecret         *MFASecret         `gorm:"constraint:OnDelete:CASCADE"`
}

// IsVerified reports whether the account went through activation or was
// created from a verified OAuth identity.
func (u *User) IsVerified() bool {
	return u.VerifiedAt != nil
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
