package models

import (
	"time"
)

// UserRole is the role carried in the access token
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleProvider UserRole = "provider"
	RoleAdmin    UserRole = "admin"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// User represents an account in the marketplace
type User struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"` // Never expose
	Phone         NullString `json:"phone,omitempty" db:"phone"`
	Role          UserRole   `json:"role" db:"role"`
	WalletBalance Money      `json:"wallet_balance" db:"wallet_balance_cents"`
	LastLoginAt   NullTime   `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// RefreshToken represents a stored JWT refresh token
type RefreshToken struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"` // Never expose
	IPAddress  NullString `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  NullString `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType NullString `json:"device_type,omitempty" db:"device_type"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt NullTime   `json:"last_used_at,omitempty" db:"last_used_at"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  NullTime   `json:"revoked_at,omitempty" db:"revoked_at"`
}

// RegisterCustomerRequest is the body of POST /auth/register
type RegisterCustomerRequest struct {
	Name     string  `json:"name" binding:"required,max=100"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	Phone    *string `json:"phone,omitempty"`
}

// RegisterProviderRequest is the body of POST /auth/register/provider
type RegisterProviderRequest struct {
	RegisterCustomerRequest
	ServiceType     string  `json:"service_type" binding:"required"`
	HourlyRate      Money   `json:"hourly_rate" binding:"required,gt=0"`
	ExperienceYears int     `json:"experience_years" binding:"min=0,max=80"`
	Location        string  `json:"location" binding:"required"`
	Address         *string `json:"address,omitempty"`
	Bio             *string `json:"bio,omitempty"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest is the body of POST /auth/refresh and /auth/logout
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest is the body of PATCH /auth/me. Nil fields are left
// unchanged; an empty phone removes it.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Email *string `json:"email,omitempty" binding:"omitempty,email"`
	Phone *string `json:"phone,omitempty"`
}

// IsEmpty reports whether the request changes nothing
func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.Name == nil && r.Email == nil && r.Phone == nil
}

// AuthResponse is returned after login, registration and refresh
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         *User  `json:"user"`
}
