package dto

import (
	"regexp"
	"time"

	"describly/internal/entity"

	"github.com/go-playground/validator/v10"
)

var mobileNumberPattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// NewValidator returns a validator with the custom tags used by the
// request types below.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobileNumberPattern.MatchString(fl.Field().String())
	})
	return v
}

type RegisterRequest struct {
	FullName        string `json:"full_name" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email,max=255"`
	MobileNumber    string `json:"mobile_number" validate:"omitempty,mobile"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type VerifyUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required,numeric,len=5"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type LoginMFARequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"required,numeric"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Token           string `json:"token" validate:"required,numeric,len=5"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type MFAVerifyRequest struct {
	Code string `json:"code" validate:"required,numeric"`
}

type MFAEnableResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LoginResponse struct {
	AccessToken       string     `json:"access_token,omitempty"`
	RefreshToken      string     `json:"refresh_token,omitempty"`
	ExpiresIn         int64      `json:"expires_in,omitempty"`
	MFARequired       bool       `json:"mfa_required,omitempty"`
	MFAToken          string     `json:"mfa_token,omitempty"`
	MFATokenExpiresIn int64      `json:"mfa_token_expires_in,omitempty"`
	ID                uint       `json:"id,omitempty"`
	FullName          string     `json:"full_name,omitempty"`
	Email             string     `json:"email,omitempty"`
	MobileNumber      *string    `json:"mobile_number,omitempty"`
	IsActive          bool       `json:"is_active,omitempty"`
	LoggedInAt        *time.Time `json:"loggedin_at,omitempty"`
}

type UserResponse struct {
	ID             uint       `json:"id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	MobileNumber   *string    `json:"mobile_number"`
	IsActive       bool       `json:"is_active"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LoggedInAt     *time.Time `json:"loggedin_at"`
	ProfilePicture *string    `json:"profile_picture,omitempty"`
}

type SecurityEventResponse struct {
	Action    string    `json:"action"`
	IPAddress *string   `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		FullName:       user.FullName,
		Email:          user.Email,
		MobileNumber:   user.MobileNumber,
		IsActive:       user.IsActive,
		VerifiedAt:     user.VerifiedAt,
		CreatedAt:      user.CreatedAt,
		LoggedInAt:     user.LoggedInAt,
		ProfilePicture: user.ProfilePicture,
	}
}

func LoginResponseFromUser(user *entity.User) LoginResponse {
	if user == nil {
		return LoginResponse{}
	}
	return LoginResponse{
		ID:           user.ID,
		FullName:     user.FullName,
		Email:        user.Email,
		MobileNumber: user.MobileNumber,
		IsActive:     user.IsActive,
		LoggedInAt:   user.LoggedInAt,
	}
}

func SecurityEventsFromEntities(logs []entity.SecurityLog) []SecurityEventResponse {
	responses := make([]SecurityEventResponse, 0, len(logs))
	for i := range logs {
		responses = append(responses, SecurityEventResponse{
			Action:    string(logs[i].Action),
			IPAddress: logs[i].IPAddress,
			CreatedAt: logs[i].CreatedAt,
		})
	}
	return responses
}
