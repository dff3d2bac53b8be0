package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/utils"
	"github.com/homeserve/marketplace-backend/pkg/jwt"
	"github.com/homeserve/marketplace-backend/pkg/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists accounts
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	CreateProvider(ctx context.Context, u *models.User, p *models.ProviderProfile) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
	UpdateProfile(ctx context.Context, u *models.User) error
}

// TokenStore persists hashed refresh tokens
type TokenStore interface {
	StoreRefreshToken(ctx context.Context, userID int64, token string, ipAddress, userAgent, deviceType string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
	UpdateLastUsed(ctx context.Context, token string) error
}

var errBadCredentials = &UnauthorizedError{Message: "invalid email or password"}

// AuthService handles registration, login and token lifecycle
type AuthService struct {
	users      UserStore
	tokens     TokenStore
	providers  ProviderLookup
	jwt        *jwt.Service
	audit      *AuditService
	bcryptCost int
	logger     *logrus.Logger
	phones     *validator.PhoneValidator
}

// NewAuthService creates a new auth service
func NewAuthService(
	users UserStore,
	tokens TokenStore,
	providers ProviderLookup,
	jwtService *jwt.Service,
	audit *AuditService,
	bcryptCost int,
	logger *logrus.Logger,
) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		providers:  providers,
		jwt:        jwtService,
		audit:      audit,
		bcryptCost: bcryptCost,
		logger:     logger,
		phones:     validator.NewPhoneValidator(),
	}
}

// RegisterCustomer creates a customer account and signs it in
func (s *AuthService) RegisterCustomer(ctx context.Context, req *models.RegisterCustomerRequest) (*models.AuthResponse, error) {
	u, err := s.newUser(req, models.RoleCustomer)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, validation("email", "is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("User registered")
	s.audit.LogRegister(ctx, u.ID, u.Role)
	return s.issue(ctx, u, 0)
}

// RegisterProvider creates a provider account with a profile pending
// verification. The provider can sign in but is not bookable until verified.
func (s *AuthService) RegisterProvider(ctx context.Context, req *models.RegisterProviderRequest) (*models.AuthResponse, error) {
	u, err := s.newUser(&req.RegisterCustomerRequest, models.RoleProvider)
	if err != nil {
		return nil, err
	}

	serviceType := strings.TrimSpace(req.ServiceType)
	if serviceType == "" {
		return nil, validation("service_type", "is required")
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, validation("location", "is required")
	}
	if req.HourlyRate <= 0 {
		return nil, validation("hourly_rate", "must be positive")
	}
	if req.ExperienceYears < 0 {
		return nil, validation("experience_years", "cannot be negative")
	}

	p := &models.ProviderProfile{
		ServiceType:     serviceType,
		HourlyRate:      req.HourlyRate,
		ExperienceYears: req.ExperienceYears,
		Location:        location,
		Address:         models.NewNullString(req.Address),
		Bio:             models.NewNullString(req.Bio),
	}
	if err := s.users.CreateProvider(ctx, u, p); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, validation("email", "is already registered")
		}
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     u.ID,
		"provider_id": p.ID,
		"role":        u.Role,
	}).Info("Provider registered, pending verification")
	s.audit.LogRegister(ctx, u.ID, u.Role)
	return s.issue(ctx, u, p.ID)
}

// Login authenticates with email and password
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		return nil, errBadCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}

	var providerID int64
	if u.Role == models.RoleProvider {
		if p, err := s.providers.GetProviderByUserID(ctx, u.ID); err == nil {
			providerID = p.ID
		}
	}

	resp, err := s.issue(ctx, u, providerID)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("Failed to update last login")
	}
	s.audit.LogLogin(ctx, u.ID, u.Email)
	return resp, nil
}

// Refresh issues a new access token for a valid, unrevoked refresh token.
// The refresh token itself is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, &UnauthorizedError{Message: "invalid refresh token"}
	}

	stored, err := s.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &UnauthorizedError{Message: "refresh token not found"}
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if stored.Revoked {
		return nil, &UnauthorizedError{Message: "refresh token has been revoked"}
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, &UnauthorizedError{Message: "refresh token has expired"}
	}

	u, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &UnauthorizedError{Message: "user no longer exists"}
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var providerID int64
	if u.Role == models.RoleProvider {
		if p, err := s.providers.GetProviderByUserID(ctx, u.ID); err == nil {
			providerID = p.ID
		}
	}

	accessToken, err := s.jwt.GenerateAccessToken(subjectOf(u, providerID))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	if err := s.tokens.UpdateLastUsed(ctx, refreshToken); err != nil {
		s.logger.WithError(err).Warn("Failed to update refresh token last used")
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.AccessTokenExpiry().Seconds()),
		TokenType:    "Bearer",
		User:         u,
	}, nil
}

// Logout revokes one refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.RevokeToken(ctx, refreshToken); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &UnauthorizedError{Message: "refresh token not found or already revoked"}
		}
		return err
	}
	return nil
}

// LogoutAll revokes every refresh token of the actor
func (s *AuthService) LogoutAll(ctx context.Context, actor Actor) error {
	return s.tokens.RevokeAllUserTokens(ctx, actor.UserID)
}

// Me returns the actor's account
func (s *AuthService) Me(ctx context.Context, actor Actor) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "user", ID: actor.UserID}
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UpdateProfile changes the actor's name, email or phone. Tokens issued
// before an email change keep the old address until the next refresh.
func (s *AuthService) UpdateProfile(ctx context.Context, actor Actor, req *models.UpdateProfileRequest) (*models.User, error) {
	if req.IsEmpty() {
		return nil, validation("", "no fields to update")
	}

	u, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}

	var changed []string
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validation("name", "cannot be empty")
		}
		if name != u.Name {
			u.Name = name
			changed = append(changed, "name")
		}
	}
	if req.Email != nil {
		email, err := validator.NormalizeEmail(*req.Email)
		if err != nil {
			return nil, validation("email", "%s", err.Error())
		}
		if email != u.Email {
			existing, err := s.users.GetUserByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != u.ID:
				return nil, validation("email", "email already in use")
			case err != nil && !errors.Is(err, database.ErrNotFound):
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			u.Email = email
			changed = append(changed, "email")
		}
	}
	if req.Phone != nil {
		var phone *string
		if strings.TrimSpace(*req.Phone) != "" {
			p, err := s.phones.Validate(*req.Phone)
			if err != nil {
				return nil, validation("phone", "%s", err.Error())
			}
			phone = &p
		}
		if next := models.NewNullString(phone); next != u.Phone {
			u.Phone = next
			changed = append(changed, "phone")
		}
	}

	if len(changed) == 0 {
		return u, nil
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicate):
			return nil, validation("email", "email already in use")
		case errors.Is(err, database.ErrNotFound):
			return nil, &NotFoundError{Entity: "user", ID: actor.UserID}
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": u.ID,
		"fields":  changed,
	}).Info("Profile updated")

	s.audit.logEvent(ctx, AuditEvent{
		UserID:     &u.ID,
		Action:     models.AuditActionProfileUpdated,
		EntityType: "user",
		EntityID:   &u.ID,
		Details:    map[string]interface{}{"fields": changed},
	})
	return u, nil
}

func (s *AuthService) newUser(req *models.RegisterCustomerRequest, role models.UserRole) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validation("name", "is required")
	}
	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		return nil, validation("email", "%s", err.Error())
	}
	if len(req.Password) < 8 {
		return nil, validation("password", "must be at least 8 characters")
	}

	var phone *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		p, err := s.phones.Validate(*req.Phone)
		if err != nil {
			return nil, validation("phone", "%s", err.Error())
		}
		phone = &p
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Phone:        models.NewNullString(phone),
		Role:         role,
	}, nil
}

// issue signs a token pair for u and stores the refresh token
func (s *AuthService) issue(ctx context.Context, u *models.User, providerID int64) (*models.AuthResponse, error) {
	sub := subjectOf(u, providerID)

	accessToken, err := s.jwt.GenerateAccessToken(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwt.GenerateRefreshToken(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	meta := utils.RequestMetaFrom(ctx)
	expiresAt := time.Now().Add(s.jwt.RefreshTokenExpiry())
	if err := s.tokens.StoreRefreshToken(ctx, u.ID, refreshToken,
		meta.IPAddress, meta.UserAgent, utils.DeviceType(meta.UserAgent), expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.AccessTokenExpiry().Seconds()),
		TokenType:    "Bearer",
		User:         u,
	}, nil
}

func subjectOf(u *models.User, providerID int64) jwt.Subject {
	return jwt.Subject{UserID: u.ID, Email: u.Email, Role: string(u.Role), ProviderID: providerID}
}
