package entity

import (
	"time"
)

type MFASecret struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"uniqueIndex;not null"`

	Secret    string `gorm:"type:text;not null"`
	EnabledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *MFASecret) Enabled() bool {
	return s != nil && s.EnabledAt != nil
}
