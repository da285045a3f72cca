package entity

import (
	"time"
)

type UserToken struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"not null;index"`
	User   *User

	AccessKey  string `gorm:"type:varchar(250);not null;index"`
	RefreshKey string `gorm:"type:varchar(250);not null;index"`

	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index"`
}
