package service

import "describly/internal/entity"

type RegisterInput struct {
	FullName        string
	Email           string
	MobileNumber    string
	Password        string
	ConfirmPassword string
	IPAddress       *string
}

type ActivateInput struct {
	Email     string
	Code      string
	IPAddress *string
}

type LoginInput struct {
	Identifier string
	Password   string
	IPAddress  *string
}

type LoginMFAInput struct {
	MFAToken  string
	Code      string
	IPAddress *string
}

type ResetPasswordInput struct {
	Email           string
	Code            string
	NewPassword     string
	ConfirmPassword string
	IPAddress       *string
}

// OAuthIdentity is the verified result of an external code exchange.
type OAuthIdentity struct {
	Provider       string
	OAuthID        string
	Email          string
	FullName       string
	AccessToken    string
	RefreshToken   string
	ProfilePicture string
}

// TokenPair is a freshly issued access/refresh pair together with the user
// it was issued for.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64
	RefreshExpiresIn int64
	User             *entity.User
}

// LoginResult carries either a token pair or, for TOTP enrolled users, a
// short lived challenge token for the second step.
type LoginResult struct {
	Tokens            *TokenPair
	MFARequired       bool
	MFAToken          string
	MFATokenExpiresIn int64
}

// AccessIdentity is what a verified access token resolves to.
type AccessIdentity struct {
	UserID    uint
	TokenID   uint
	AccessKey string
	FullName  string
}

// RefreshIdentity is what a verified refresh token resolves to.
type RefreshIdentity struct {
	UserID     uint
	RefreshKey string
	AccessKey  string
}

type MFAEnrollment struct {
	Secret string
	URL    string
}
