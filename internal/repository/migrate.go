package repository

import (
	"describly/internal/entity"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.UserToken{},
		&entity.VerificationCode{},
		&entity.MFASecret{},
		&entity.SecurityLog{},
	)
}
