package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"describly/internal/entity"
	"describly/internal/repository"
	"describly/internal/utils"
)

const (
	oauthBranchExisting = "existing"
	oauthBranchLinked   = "linked"
	oauthBranchCreated  = "created"
)

// ProcessOAuthLogin maps a verified external identity to a local account,
// linking by email or creating one when needed, and issues a token pair.
// A unique violation from a concurrent callback for the same identity
// retries the reconciliation once.
func (s *AuthService) ProcessOAuthLogin(ctx context.Context, identity OAuthIdentity, ipAddress *string) (*TokenPair, error) {
	identity.Provider = strings.TrimSpace(identity.Provider)
	identity.OAuthID = strings.TrimSpace(identity.OAuthID)
	identity.Email = utils.NormalizeEmail(identity.Email)
	if identity.Provider == "" || identity.OAuthID == "" || identity.Email == "" {
		return nil, ErrInvalidInput
	}

	pair, branch, err := s.reconcileOAuth(ctx, identity)
	if errors.Is(err, repository.ErrDuplicate) {
		pair, branch, err = s.reconcileOAuth(ctx, identity)
	}
	if err != nil {
		return nil, err
	}

	s.sendEmail(ctx, pair.User.Email, TemplateAccountActivationConfirmation, s.welcomeEmailData(pair.User))
	s.logSecurity(ctx, &pair.User.ID, ipAddress, entity.OAuthLogin, map[string]any{
		"provider": identity.Provider,
		"branch":   branch,
	})
	return pair, nil
}

func (s *AuthService) reconcileOAuth(ctx context.Context, identity OAuthIdentity) (*TokenPair, string, error) {
	var (
		pair   *TokenPair
		branch string
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByOAuth(ctx, identity.Provider, identity.OAuthID)
		if err != nil {
			return fmt.Errorf("find user by oauth: %w", err)
		}

		switch {
		case user != nil:
			branch = oauthBranchExisting
			if err := s.users.UpdateOAuthTokens(ctx, user.ID, oauthLink(identity), s.now()); err != nil {
				return fmt.Errorf("update oauth tokens: %w", err)
			}
			if user, err = s.reloadUser(ctx, user.ID); err != nil {
				return err
			}
		default:
			user, err = s.users.FindByEmail(ctx, identity.Email)
			if err != nil {
				return fmt.Errorf("find user by email: %w", err)
			}
			if user != nil {
				branch = oauthBranchLinked
				user, err = s.linkOAuth(ctx, user.ID, identity)
			} else {
				branch = oauthBranchCreated
				user, err = s.createOAuthUser(ctx, identity)
			}
			if err != nil {
				return err
			}
		}

		pair, err = s.issueTokens(ctx, user)
		return err
	})
	return pair, branch, err
}

// linkOAuth attaches the identity to an account found by email. A password
// on an account that never verified its email is discarded.
func (s *AuthService) linkOAuth(ctx context.Context, userID uint, identity OAuthIdentity) (*entity.User, error) {
	if err := s.users.LinkOAuth(ctx, userID, oauthLink(identity), s.now()); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("link oauth identity: %w", err)
	}
	return s.reloadUser(ctx, userID)
}

func (s *AuthService) createOAuthUser(ctx context.Context, identity OAuthIdentity) (*entity.User, error) {
	now := s.now()
	fullName := strings.TrimSpace(identity.FullName)
	if fullName == "" {
		fullName = strings.Split(identity.Email, "@")[0]
	}
	user := &entity.User{
		FullName:      fullName,
		Email:         identity.Email,
		IsActive:      true,
		VerifiedAt:    &now,
		OAuthProvider: &identity.Provider,
		OAuthID:       &identity.OAuthID,
	}
	applyOAuthTokens(user, identity)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("create oauth user: %w", err)
	}
	return user, nil
}

func oauthLink(identity OAuthIdentity) repository.OAuthLink {
	return repository.OAuthLink{
		Provider:       identity.Provider,
		OAuthID:        identity.OAuthID,
		AccessToken:    identity.AccessToken,
		RefreshToken:   identity.RefreshToken,
		ProfilePicture: identity.ProfilePicture,
	}
}

func applyOAuthTokens(user *entity.User, identity OAuthIdentity) {
	if identity.AccessToken != "" {
		user.OAuthAccessToken = &identity.AccessToken
	}
	if identity.RefreshToken != "" {
		user.OAuthRefreshToken = &identity.RefreshToken
	}
	if identity.ProfilePicture != "" && user.ProfilePicture == nil {
		user.ProfilePicture = &identity.ProfilePicture
	}
}
