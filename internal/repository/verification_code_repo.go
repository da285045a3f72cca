package repository

import (
	"context"
	"errors"
	"time"

	"describly/internal/entity"

	"gorm.io/gorm"
)

type VerificationCodeRepository interface {
	Create(ctx context.Context, code *entity.VerificationCode) error
	FindValid(ctx context.Context, userID uint, codeHash string, purpose entity.VerificationPurpose, now time.Time) (*entity.VerificationCode, error)
	MarkUsed(ctx context.Context, id uint, now time.Time) (bool, error)
}

type verificationCodeRepository struct {
	db *gorm.DB
}

func NewVerificationCodeRepository(db *gorm.DB) VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

func (r *verificationCodeRepository) Create(ctx context.Context, code *entity.VerificationCode) error {
	return conn(ctx, r.db).Create(code).Error
}

// FindValid returns the earliest issued unused, unexpired code for the
// purpose. Outstanding codes are allowed to coexist.
func (r *verificationCodeRepository) FindValid(
	ctx context.Context,
	userID uint,
	codeHash string,
	purpose entity.VerificationPurpose,
	now time.Time,
) (*entity.VerificationCode, error) {
	var code entity.VerificationCode
	err := conn(ctx, r.db).
		Where("user_id = ? AND code = ? AND purpose = ? AND used = ? AND expires_at > ?",
			userID, codeHash, purpose, false, now).
		Order("id ASC").
		First(&code).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// MarkUsed flips used only while the row is still valid; false means a
// concurrent consumer got there first or the code expired meanwhile.
func (r *verificationCodeRepository) MarkUsed(ctx context.Context, id uint, now time.Time) (bool, error) {
	result := conn(ctx, r.db).
		Model(&entity.VerificationCode{}).
		Where("id = ? AND used = ? AND expires_at > ?", id, false, now).
		Update("used", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
