package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"describly/internal/entity"
	"describly/internal/repository"
	"describly/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// dummyPasswordHash keeps the unknown-user path as slow as a real verify.
const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

const (
	accessKeyBytes  = 50
	refreshKeyBytes = 100

	defaultVerificationCodeTTL  = 30 * time.Minute
	defaultPasswordResetCodeTTL = 90 * time.Minute
)

type AuthDependencies struct {
	Users        repository.UserRepository
	Tokens       repository.UserTokenRepository
	Codes        repository.VerificationCodeRepository
	MFASecrets   repository.MFASecretRepository
	SecurityLogs repository.SecurityLogRepository
	Transactor   repository.Transactor

	EmailSender  EmailSender
	PasswordHash PasswordHasher
	TokenIssuer  TokenIssuer
	MFATokens    MFATokenIssuer
	MFAProvider  MFAProvider
	Metrics      EventRecorder
	Logger       logrus.FieldLogger
	Clock        Clock

	// CodePepper keys the digest stored for verification codes.
	CodePepper string
	Config     AuthConfig
}

type AuthService struct {
	users        repository.UserRepository
	tokens       repository.UserTokenRepository
	mfaSecrets   repository.MFASecretRepository
	securityLogs repository.SecurityLogRepository
	tx           repository.Transactor
	ledger       *VerificationLedger

	emailSender  EmailSender
	passwordHash PasswordHasher
	tokenIssuer  TokenIssuer
	mfaTokens    MFATokenIssuer
	mfaProvider  MFAProvider
	metrics      EventRecorder
	logger       logrus.FieldLogger
	clock        Clock
	config       AuthConfig
}

func NewAuthService(deps AuthDependencies) *AuthService {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	hasher := deps.PasswordHash
	if hasher == nil {
		hasher = Argon2PasswordHasher{}
	}
	return &AuthService{
		users:        deps.Users,
		tokens:       deps.Tokens,
		mfaSecrets:   deps.MFASecrets,
		securityLogs: deps.SecurityLogs,
		tx:           deps.Transactor,
		ledger:       NewVerificationLedger(deps.Codes, deps.CodePepper, clock),
		emailSender:  deps.EmailSender,
		passwordHash: hasher,
		tokenIssuer:  deps.TokenIssuer,
		mfaTokens:    deps.MFATokens,
		mfaProvider:  deps.MFAProvider,
		metrics:      deps.Metrics,
		logger:       logger,
		clock:        clock,
		config:       deps.Config,
	}
}

// Register creates an unverified account and emails its activation code.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" || strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}
	if input.Password != input.ConfirmPassword {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}
	if !utils.IsPasswordStrongEnough(input.Password) {
		return nil, ErrWeakPassword
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entity.User{
		FullName:     fullName,
		Email:        email,
		MobileNumber: optionalString(input.MobileNumber),
		PasswordHash: &hash,
		IsActive:     false,
	}
	var code string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("create user: %w", err)
		}
		code, err = s.ledger.Issue(ctx, user.ID, entity.AccountVerification, s.verificationCodeTTL())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.sendEmail(ctx, user.Email, TemplateAccountVerification, s.codeEmailData(user, code))
	s.logSecurity(ctx, &user.ID, input.IPAddress, entity.Register, nil)
	return user, nil
}

// ResendVerification issues a fresh activation code for an unverified
// account. Unknown or already verified emails are silently accepted.
func (s *AuthService) ResendVerification(ctx context.Context, email string, ipAddress *string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		s.logger.WithError(err).Error("resend verification lookup failed")
		return nil
	}
	if user == nil || user.IsVerified() {
		return nil
	}
	code, err := s.ledger.Issue(ctx, user.ID, entity.AccountVerification, s.verificationCodeTTL())
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("resend verification issue failed")
		return nil
	}
	s.sendEmail(ctx, user.Email, TemplateAccountVerification, s.codeEmailData(user, code))
	s.logSecurity(ctx, &user.ID, ipAddress, entity.Register, map[string]any{"resend": true})
	return nil
}

// Activate consumes an account_verification code and activates the account
// in the same transaction.
func (s *AuthService) Activate(ctx context.Context, input ActivateInput) (*entity.User, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(input.Email))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidEmail
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.ledger.Consume(ctx, user.ID, strings.TrimSpace(input.Code), entity.AccountVerification)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidOrExpiredCode
		}
		if err := s.users.Activate(ctx, user.ID, s.now()); err != nil {
			return fmt.Errorf("activate user: %w", err)
		}
		user, err = s.reloadUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.sendEmail(ctx, user.Email, TemplateAccountActivationConfirmation, s.welcomeEmailData(user))
	s.logSecurity(ctx, &user.ID, input.IPAddress, entity.Activate, nil)
	return user, nil
}

// Login checks existence, credentials, verification and activation in that
// order. Accounts with TOTP enabled get a challenge instead of tokens.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		s.logSecurity(ctx, nil, input.IPAddress, entity.LoginFailed, map[string]any{"reason": "not_found"})
		return nil, ErrNotFound
	}
	if !user.HasPassword() || !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
		s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginFailed, map[string]any{"reason": "bad_credentials"})
		return nil, ErrBadCredentials
	}
	if !user.IsVerified() {
		return nil, ErrNotVerified
	}
	if !user.IsActive {
		return nil, ErrDeactivated
	}

	if s.mfaEnabled() {
		secret, err := s.mfaSecrets.FindByUserID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("find mfa secret: %w", err)
		}
		if secret.Enabled() {
			token, ttl, err := s.mfaTokens.IssueMFAToken(user.ID)
			if err != nil {
				return nil, fmt.Errorf("issue mfa token: %w", err)
			}
			return &LoginResult{
				MFARequired:       true,
				MFAToken:          token,
				MFATokenExpiresIn: int64(ttl.Seconds()),
			}, nil
		}
	}

	pair, err := s.issueTokensTx(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginSuccess, nil)
	return &LoginResult{Tokens: pair}, nil
}

// RefreshToken rotates a refresh token. The presented pair's row is expired
// with a conditional update, so concurrent refreshes yield one winner.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string, ipAddress *string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRequest
	}
	identity, err := s.tokenIssuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRequest
	}

	var pair *TokenPair
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		row, err := s.tokens.FindActive(ctx, identity.UserID, identity.AccessKey, identity.RefreshKey, now)
		if err != nil {
			return fmt.Errorf("find user token: %w", err)
		}
		if row == nil {
			return ErrInvalidRequest
		}
		expired, err := s.tokens.Expire(ctx, row.ID, now)
		if err != nil {
			return fmt.Errorf("expire user token: %w", err)
		}
		if !expired {
			return ErrInvalidRequest
		}

		user, err := s.users.FindByID(ctx, identity.UserID)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil || !user.IsActive {
			return ErrInvalidRequest
		}
		pair, err = s.issueTokens(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logSecurity(ctx, &pair.User.ID, ipAddress, entity.TokenRefreshed, nil)
	return pair, nil
}

// Authenticate resolves an access token to its user. The token record it
// references must still be unexpired.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*entity.User, AccessIdentity, error) {
	identity, err := s.tokenIssuer.ParseAccessToken(accessToken)
	if err != nil {
		return nil, AccessIdentity{}, ErrInvalidRequest
	}
	row, err := s.tokens.FindActiveByAccess(ctx, identity.TokenID, identity.UserID, identity.AccessKey, s.now())
	if err != nil {
		return nil, AccessIdentity{}, fmt.Errorf("find user token: %w", err)
	}
	if row == nil {
		return nil, AccessIdentity{}, ErrInvalidRequest
	}
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, AccessIdentity{}, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, AccessIdentity{}, ErrInvalidRequest
	}
	if !user.IsActive {
		return nil, AccessIdentity{}, ErrDeactivated
	}
	return user, identity, nil
}

// Logout expires the token record behind the current access token, which
// also retires its refresh token.
func (s *AuthService) Logout(ctx context.Context, userID uint, tokenID uint, ipAddress *string) error {
	if _, err := s.tokens.Expire(ctx, tokenID, s.now()); err != nil {
		return fmt.Errorf("expire user token: %w", err)
	}
	s.logSecurity(ctx, &userID, ipAddress, entity.Logout, nil)
	return nil
}

// RequestPasswordReset never reports whether the email exists. Internal
// failures are logged only.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, ipAddress *string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		s.logger.WithError(err).Error("password reset lookup failed")
		return nil
	}
	if user == nil {
		return nil
	}
	code, err := s.ledger.Issue(ctx, user.ID, entity.PasswordReset, s.passwordResetCodeTTL())
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("password reset issue failed")
		return nil
	}
	s.sendEmail(ctx, user.Email, TemplatePasswordReset, s.codeEmailData(user, code))
	s.logSecurity(ctx, &user.ID, ipAddress, entity.PasswordResetRequested, nil)
	return nil
}

// ResetPassword consumes a password_reset code and stores the new hash in
// one transaction. It does not log the user in.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Code) == "" || input.NewPassword == "" {
		return ErrInvalidInput
	}
	if input.NewPassword != input.ConfirmPassword {
		return ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(input.Email))
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		return ErrNotFound
	}
	if !utils.IsPasswordStrongEnough(input.NewPassword) {
		return ErrWeakPassword
	}

	hash, err := s.passwordHash.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.ledger.Consume(ctx, user.ID, strings.TrimSpace(input.Code), entity.PasswordReset)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidOrExpiredCode
		}
		if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logSecurity(ctx, &user.ID, input.IPAddress, entity.Reset, nil)
	return nil
}

// reloadUser reads the row back after a column update so callers see values
// written by concurrent requests too.
func (s *AuthService) reloadUser(ctx context.Context, id uint) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uint) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) ListSecurityEvents(ctx context.Context, userID uint, limit int) ([]entity.SecurityLog, error) {
	if s.securityLogs == nil {
		return nil, nil
	}
	return s.securityLogs.ListByUser(ctx, userID, limit)
}

func (s *AuthService) issueTokensTx(ctx context.Context, user *entity.User) (*TokenPair, error) {
	var pair *TokenPair
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		pair, err = s.issueTokens(ctx, user)
		return err
	})
	return pair, err
}

// issueTokens persists a new UserToken row, signs both tokens against it
// and stamps loggedin_at. Callers run it inside a transaction.
func (s *AuthService) issueTokens(ctx context.Context, user *entity.User) (*TokenPair, error) {
	accessKey, err := utils.UniqueString(accessKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("generate access key: %w", err)
	}
	refreshKey, err := utils.UniqueString(refreshKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh key: %w", err)
	}

	refreshToken, refreshTTL, err := s.tokenIssuer.IssueRefreshToken(user.ID, refreshKey, accessKey)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	now := s.now()
	row := &entity.UserToken{
		UserID:     user.ID,
		AccessKey:  accessKey,
		RefreshKey: refreshKey,
		CreatedAt:  now,
		ExpiresAt:  now.Add(refreshTTL),
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("store user token: %w", err)
	}

	accessToken, accessTTL, err := s.tokenIssuer.IssueAccessToken(user.ID, accessKey, row.ID, user.FullName)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("stamp login: %w", err)
	}
	user.LoggedInAt = &now

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(accessTTL.Seconds()),
		RefreshExpiresIn: int64(refreshTTL.Seconds()),
		User:             user,
	}, nil
}

func (s *AuthService) sendEmail(ctx context.Context, recipient string, templateKey string, data map[string]any) {
	if s.emailSender == nil {
		return
	}
	if err := s.emailSender.SendTemplatedEmail(ctx, recipient, templateKey, data); err != nil {
		s.logger.WithError(err).WithField("template", templateKey).Warn("email not sent")
	}
}

func (s *AuthService) codeEmailData(user *entity.User, code string) map[string]any {
	return map[string]any{
		"app_name":          s.config.AppName,
		"name":              user.FullName,
		"verification_code": code,
	}
}

func (s *AuthService) welcomeEmailData(user *entity.User) map[string]any {
	return map[string]any{
		"app_name":  s.config.AppName,
		"name":      user.FullName,
		"login_url": s.config.FrontendHost,
	}
}

// logSecurity is best effort; it must run after any transaction commits.
func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uint,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if s.metrics != nil {
		s.metrics.RecordSecurityEvent(string(action))
	}
	if s.securityLogs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			s.logger.WithError(err).Warn("security log metadata")
			return
		}
		payload = datatypes.JSON(bytes)
	}
	log := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
		CreatedAt: s.now(),
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("security log not written")
	}
}

func (s *AuthService) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *AuthService) verificationCodeTTL() time.Duration {
	if s.config.VerificationCodeTTL > 0 {
		return s.config.VerificationCodeTTL
	}
	return defaultVerificationCodeTTL
}

func (s *AuthService) passwordResetCodeTTL() time.Duration {
	if s.config.PasswordResetCodeTTL > 0 {
		return s.config.PasswordResetCodeTTL
	}
	return defaultPasswordResetCodeTTL
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
