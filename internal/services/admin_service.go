package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AccountStore is the admin view of accounts
type AccountStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, role *models.UserRole) ([]models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// CatalogStore lists the service catalog and wallet history
type CatalogStore interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	ListTransactions(ctx context.Context, userID int64) ([]models.WalletTransaction, error)
}

// AdminService backs the admin console: accounts and the audit trail
type AdminService struct {
	users     AccountStore
	providers ProviderLookup
	audit     *AuditService
	bus       *events.EventBus
	logger    *logrus.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(users AccountStore, providers ProviderLookup, audit *AuditService, bus *events.EventBus, logger *logrus.Logger) *AdminService {
	return &AdminService{users: users, providers: providers, audit: audit, bus: bus, logger: logger}
}

// ListUsers returns accounts, optionally of one role
func (s *AdminService) ListUsers(ctx context.Context, actor Actor, role *models.UserRole) ([]models.User, error) {
	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "admin access required"}
	}
	if role != nil && !role.Valid() {
		return nil, validation("role", "unknown role %q", *role)
	}
	users, err := s.users.ListUsers(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes an account with everything it owns. Admins cannot
// delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, id int64) error {
	if !actor.is(models.RoleAdmin) {
		return &ForbiddenError{Message: "admin access required"}
	}
	if id == actor.UserID {
		return validation("id", "you cannot delete your own account")
	}

	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Entity: "user", ID: id}
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	var providerID int64
	if u.Role == models.RoleProvider {
		if p, err := s.providers.GetProviderByUserID(ctx, id); err == nil {
			providerID = p.ID
		}
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Entity: "user", ID: id}
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  id,
		"role":     u.Role,
		"admin_id": actor.UserID,
	}).Info("User deleted")

	s.audit.LogAdminAction(ctx, actor, models.AuditActionUserDeleted, "user", id,
		map[string]interface{}{"email": u.Email, "role": u.Role})
	if err := s.bus.PublishJSON(events.EventUserDeleted, events.ProviderEventPayload{ProviderID: providerID}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish user deleted event")
	}
	return nil
}

// AuditLog returns the most recent audit rows
func (s *AdminService) AuditLog(ctx context.Context, actor Actor, limit, offset int) ([]models.AuditLog, error) {
	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "admin access required"}
	}
	return s.audit.Recent(ctx, limit, offset)
}
