package service

import (
	"time"

	"describly/internal/utils"
)

// JWTTokenIssuer adapts utils.JWTManager to TokenIssuer and resolves the
// encoded claims back to plain identifiers.
type JWTTokenIssuer struct {
	Manager *utils.JWTManager
}

func (j JWTTokenIssuer) IssueAccessToken(userID uint, accessKey string, tokenID uint, fullName string) (string, time.Duration, error) {
	if j.Manager == nil {
		return "", 0, ErrInvalidRequest
	}
	return j.Manager.IssueAccessToken(userID, accessKey, tokenID, fullName)
}

func (j JWTTokenIssuer) IssueRefreshToken(userID uint, refreshKey string, accessKey string) (string, time.Duration, error) {
	if j.Manager == nil {
		return "", 0, ErrInvalidRequest
	}
	return j.Manager.IssueRefreshToken(userID, refreshKey, accessKey)
}

func (j JWTTokenIssuer) ParseAccessToken(token string) (AccessIdentity, error) {
	if j.Manager == nil {
		return AccessIdentity{}, ErrInvalidRequest
	}
	claims, err := j.Manager.ParseAccessToken(token)
	if err != nil {
		return AccessIdentity{}, ErrInvalidRequest
	}
	userID, err := claims.UserID()
	if err != nil {
		return AccessIdentity{}, ErrInvalidRequest
	}
	tokenID, err := claims.TokenID()
	if err != nil {
		return AccessIdentity{}, ErrInvalidRequest
	}
	return AccessIdentity{
		UserID:    userID,
		TokenID:   tokenID,
		AccessKey: claims.AccessKey,
		FullName:  claims.FullName(),
	}, nil
}

func (j JWTTokenIssuer) ParseRefreshToken(token string) (RefreshIdentity, error) {
	if j.Manager == nil {
		return RefreshIdentity{}, ErrInvalidRequest
	}
	claims, err := j.Manager.ParseRefreshToken(token)
	if err != nil {
		return RefreshIdentity{}, ErrInvalidRequest
	}
	userID, err := claims.UserID()
	if err != nil {
		return RefreshIdentity{}, ErrInvalidRequest
	}
	return RefreshIdentity{
		UserID:     userID,
		RefreshKey: claims.RefreshKey,
		AccessKey:  claims.AccessKey,
	}, nil
}
