package member

import (
	"errors"
	"time"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrPhoneExists        = errors.New("an account with this phone number already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("please verify your email address before logging in")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Member struct {
	ID                     int        `db:"id" json:"id"`
	Name                   string     `db:"name" json:"name"`
	Email                  string     `db:"email" json:"email"`
	Phone                  string     `db:"phone" json:"phone"`
	Age                    int        `db:"age" json:"age"`
	EmergencyContactName   string     `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone  string     `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	PasswordHash           string     `db:"password_hash" json:"-"`
	EmailVerificationToken *string    `db:"email_verification_token" json:"-"`
	IsVerified             bool       `db:"is_verified" json:"is_verified"`
	PasswordResetToken     *string    `db:"password_reset_token" json:"-"`
	PasswordResetExpires   *time.Time `db:"password_reset_expires" json:"-"`
	HasUsedFreeSession     bool       `db:"has_used_free_session" json:"has_used_free_session"`
	IsAdmin                bool       `db:"is_admin" json:"is_admin"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

type RegisterRequest struct {
	Name                  string `json:"name" binding:"required,min=2,max=100" example:"Sam Boxer"`
	Email                 string `json:"email" binding:"required,email" example:"sam@example.com"`
	Phone                 string `json:"phone" binding:"required,phone" example:"+447700900123"`
	Age                   int    `json:"age" binding:"required,min=16,max=120" example:"24"`
	EmergencyContactName  string `json:"emergency_contact_name" binding:"required,min=2,max=100" example:"Alex Boxer"`
	EmergencyContactPhone string `json:"emergency_contact_phone" binding:"required,phone" example:"+447700900456"`
	Password              string `json:"password" binding:"required,min=8,max=72" example:"correct-horse"`
	CaptchaToken          string `json:"captcha_token"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"sam@example.com"`
	Password string `json:"password" binding:"required" example:"correct-horse"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Member       Member `json:"member"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	Member      Member `json:"member"`
}

type UpdateProfileRequest struct {
	Name                  string `json:"name" binding:"required,min=2,max=100"`
	Phone                 string `json:"phone" binding:"required,phone"`
	Age                   int    `json:"age" binding:"required,min=16,max=120"`
	EmergencyContactName  string `json:"emergency_contact_name" binding:"required,min=2,max=100"`
	EmergencyContactPhone string `json:"emergency_contact_phone" binding:"required,phone"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// AdminUpdateRequest only touches the flags that are set.
type AdminUpdateRequest struct {
	IsAdmin            *bool `json:"is_admin"`
	IsVerified         *bool `json:"is_verified"`
	HasUsedFreeSession *bool `json:"has_used_free_session"`
}
