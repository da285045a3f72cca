package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"describly/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uint) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	FindByOAuth(ctx context.Context, provider string, oauthID string) (*entity.User, error)
	Activate(ctx context.Context, id uint, at time.Time) error
	UpdatePassword(ctx context.Context, id uint, passwordHash string, at time.Time) error
	LinkOAuth(ctx context.Context, id uint, link OAuthLink, at time.Time) error
	UpdateOAuthTokens(ctx context.Context, id uint, link OAuthLink, at time.Time) error
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

// OAuthLink is the external identity written onto a user row. Empty token
// and picture fields leave the stored values untouched.
type OAuthLink struct {
	Provider       string
	OAuthID        string
	AccessToken    string
	RefreshToken   string
	ProfilePicture string
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return translate(conn(ctx, r.db).Omit(clause.Associations).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(ctx, "email = ?", email)
}

// FindByIdentifier resolves a login identifier: anything containing "@" is
// treated as an email, everything else as a mobile number.
func (r *userRepository) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return r.first(ctx, "email = ?", strings.ToLower(identifier))
	}
	return r.first(ctx, "mobile_number = ?", identifier)
}

func (r *userRepository) FindByOAuth(ctx context.Context, provider string, oauthID string) (*entity.User, error) {
	return r.first(ctx, "oauth_provider = ? AND oauth_id = ?", provider, oauthID)
}

// Activate marks the account active and verified. An existing verified_at
// is kept.
func (r *userRepository) Activate(ctx context.Context, id uint, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"is_active":   true,
		"verified_at": gorm.Expr("COALESCE(verified_at, ?)", at),
		"loggedin_at": at,
		"updated_at":  at,
	})
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"password_hash": passwordHash,
		"updated_at":    at,
	})
}

// LinkOAuth attaches an external identity to an existing account and
// activates it. A password set on a never verified account is dropped,
// since nobody proved it belongs to the email owner.
func (r *userRepository) LinkOAuth(ctx context.Context, id uint, link OAuthLink, at time.Time) error {
	columns := oauthTokenColumns(link, at)
	columns["oauth_provider"] = link.Provider
	columns["oauth_id"] = link.OAuthID
	columns["is_active"] = true
	columns["password_hash"] = gorm.Expr("CASE WHEN verified_at IS NULL THEN NULL ELSE password_hash END")
	columns["verified_at"] = gorm.Expr("COALESCE(verified_at, ?)", at)
	return r.updateColumns(ctx, id, columns)
}

func (r *userRepository) UpdateOAuthTokens(ctx context.Context, id uint, link OAuthLink, at time.Time) error {
	return r.updateColumns(ctx, id, oauthTokenColumns(link, at))
}

func oauthTokenColumns(link OAuthLink, at time.Time) map[string]any {
	columns := map[string]any{"updated_at": at}
	if link.AccessToken != "" {
		columns["oauth_access_token"] = link.AccessToken
	}
	if link.RefreshToken != "" {
		columns["oauth_refresh_token"] = link.RefreshToken
	}
	if link.ProfilePicture != "" {
		columns["profile_picture"] = gorm.Expr("COALESCE(profile_picture, ?)", link.ProfilePicture)
	}
	return columns
}

// updateColumns writes only the given columns so concurrent writers on
// other columns of the same row are not overwritten.
func (r *userRepository) updateColumns(ctx context.Context, id uint, columns map[string]any) error {
	result := conn(ctx, r.db).
		Model(&entity.User{}).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return conn(ctx, r.db).
		Model(&entity.User{}).
		Where("id = ?", id).
		Update("loggedin_at", at).
		Error
}

func (r *userRepository) first(ctx context.Context, query string, args ...any) (*entity.User, error) {
	var user entity.User
	err := conn(ctx, r.db).
		Where(query, args...).
		Order("id ASC").
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
