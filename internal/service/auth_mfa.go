package service

import (
	"context"
	"fmt"
	"strings"

	"describly/internal/entity"
)

func (s *AuthService) mfaEnabled() bool {
	return s.mfaProvider != nil && s.mfaSecrets != nil && s.mfaTokens != nil
}

// EnableMFA stores a pending TOTP secret. It only takes effect once
// VerifyMFA confirms a code generated from it.
func (s *AuthService) EnableMFA(ctx context.Context, userID uint) (*MFAEnrollment, error) {
	if !s.mfaEnabled() {
		return nil, ErrMFANotConfigured
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, err := s.mfaProvider.GenerateSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate mfa secret: %w", err)
	}
	record := &entity.MFASecret{UserID: user.ID, Secret: secret}
	if err := s.mfaSecrets.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("store mfa secret: %w", err)
	}

	qr, err := s.mfaProvider.QRCodeURL(user.Email, s.config.MFAIssuer, secret)
	if err != nil {
		return nil, err
	}
	return &MFAEnrollment{Secret: secret, URL: qr}, nil
}

func (s *AuthService) VerifyMFA(ctx context.Context, userID uint, code string, ipAddress *string) error {
	if !s.mfaEnabled() {
		return ErrMFANotConfigured
	}
	if strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	secret, err := s.mfaSecrets.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find mfa secret: %w", err)
	}
	if secret == nil {
		return ErrMFANotConfigured
	}
	if !s.mfaProvider.ValidateCode(secret.Secret, strings.TrimSpace(code), s.now()) {
		s.logSecurity(ctx, &userID, ipAddress, entity.MFAFailed, map[string]any{"stage": "enroll"})
		return ErrInvalidMFACode
	}

	now := s.now()
	enabled := &entity.MFASecret{UserID: userID, Secret: secret.Secret, EnabledAt: &now}
	if err := s.mfaSecrets.Upsert(ctx, enabled); err != nil {
		return fmt.Errorf("enable mfa: %w", err)
	}
	s.logSecurity(ctx, &userID, ipAddress, entity.MFAEnabled, nil)
	return nil
}

// DisableMFA turns the second factor off. It needs a current code from the
// enrolled secret, so a stolen access token alone cannot remove it.
func (s *AuthService) DisableMFA(ctx context.Context, userID uint, code string, ipAddress *string) error {
	if !s.mfaEnabled() {
		return ErrMFANotConfigured
	}
	if strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	secret, err := s.mfaSecrets.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find mfa secret: %w", err)
	}
	if !secret.Enabled() {
		return ErrMFANotConfigured
	}
	if !s.mfaProvider.ValidateCode(secret.Secret, strings.TrimSpace(code), s.now()) {
		s.logSecurity(ctx, &userID, ipAddress, entity.MFAFailed, map[string]any{"stage": "disable"})
		return ErrInvalidMFACode
	}

	if err := s.mfaSecrets.Disable(ctx, userID); err != nil {
		return fmt.Errorf("disable mfa: %w", err)
	}
	s.logSecurity(ctx, &userID, ipAddress, entity.MFADisabled, nil)
	return nil
}

// LoginWithMFA completes a login that Login answered with a challenge.
func (s *AuthService) LoginWithMFA(ctx context.Context, input LoginMFAInput) (*TokenPair, error) {
	if !s.mfaEnabled() {
		return nil, ErrMFANotConfigured
	}
	if strings.TrimSpace(input.MFAToken) == "" || strings.TrimSpace(input.Code) == "" {
		return nil, ErrInvalidInput
	}
	userID, err := s.mfaTokens.ParseMFAToken(input.MFAToken)
	if err != nil {
		return nil, ErrInvalidMFAToken
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrDeactivated
	}
	secret, err := s.mfaSecrets.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("find mfa secret: %w", err)
	}
	if !secret.Enabled() {
		return nil, ErrMFARequired
	}
	if !s.mfaProvider.ValidateCode(secret.Secret, strings.TrimSpace(input.Code), s.now()) {
		s.logSecurity(ctx, &user.ID, input.IPAddress, entity.MFAFailed, map[string]any{"stage": "login"})
		return nil, ErrInvalidMFACode
	}

	pair, err := s.issueTokensTx(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginSuccess, map[string]any{"mfa": true})
	return pair, nil
}
