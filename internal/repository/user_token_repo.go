package repository

import (
	"context"
	"errors"
	"time"

	"describly/internal/entity"

	"gorm.io/gorm"
)

type UserTokenRepository interface {
	Create(ctx context.Context, token *entity.UserToken) error
	FindActive(ctx context.Context, userID uint, accessKey string, refreshKey string, now time.Time) (*entity.UserToken, error)
	FindActiveByAccess(ctx context.Context, id uint, userID uint, accessKey string, now time.Time) (*entity.UserToken, error)
	Expire(ctx context.Context, id uint, now time.Time) (bool, error)
}

type userTokenRepository struct {
	db *gorm.DB
}

func NewUserTokenRepository(db *gorm.DB) UserTokenRepository {
	return &userTokenRepository{db: db}
}

func (r *userTokenRepository) Create(ctx context.Context, token *entity.UserToken) error {
	return translate(conn(ctx, r.db).Create(token).Error)
}

// FindActive returns the unexpired row matching the full key triple.
func (r *userTokenRepository) FindActive(ctx context.Context, userID uint, accessKey string, refreshKey string, now time.Time) (*entity.UserToken, error) {
	return r.first(ctx,
		"user_id = ? AND access_key = ? AND refresh_key = ? AND expires_at > ?",
		userID, accessKey, refreshKey, now,
	)
}

func (r *userTokenRepository) FindActiveByAccess(ctx context.Context, id uint, userID uint, accessKey string, now time.Time) (*entity.UserToken, error) {
	return r.first(ctx,
		"id = ? AND user_id = ? AND access_key = ? AND expires_at > ?",
		id, userID, accessKey, now,
	)
}

// Expire moves expires_at to now. It reports false when another caller
// already expired the row, so only one rotation can win.
func (r *userTokenRepository) Expire(ctx context.Context, id uint, now time.Time) (bool, error) {
	result := conn(ctx, r.db).
		Model(&entity.UserToken{}).
		Where("id = ? AND expires_at > ?", id, now).
		Update("expires_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *userTokenRepository) first(ctx context.Context, query string, args ...any) (*entity.UserToken, error) {
	var token entity.UserToken
	err := conn(ctx, r.db).
		Where(query, args...).
		Order("id ASC").
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}
