package service

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrWeakPassword         = errors.New("please provide a strong password")
	ErrNotFound             = errors.New("email not found")
	ErrInvalidEmail         = errors.New("this link is not valid")
	ErrBadCredentials       = errors.New("incorrect email or password")
	ErrNotVerified          = errors.New("your account is not verified, please check your email inbox to verify your account")
	ErrDeactivated          = errors.New("your account has been deactivated, please contact support")
	ErrInvalidOrExpiredCode = errors.New("this link either expired or not valid")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUserNotFound         = errors.New("user does not exist")

	ErrMFARequired      = errors.New("mfa required")
	ErrInvalidMFACode   = errors.New("invalid mfa code")
	ErrInvalidMFAToken  = errors.New("invalid mfa token")
	ErrMFANotConfigured = errors.New("mfa not configured")

	ErrOAuthNotConfigured = errors.New("oauth provider not configured")
	ErrOAuthExchange      = errors.New("oauth exchange failed")
)
