package services

import (
	"context"
	"fmt"
	"time"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuditStore persists audit rows
type AuditStore interface {
	Insert(ctx context.Context, entry *models.AuditLog, details map[string]interface{}) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
	CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuditService records security and admin events. Writes happen after the
// audited change committed, so a failed write is logged and swallowed.
// A nil *AuditService records nothing.
type AuditService struct {
	store   AuditStore
	logger  *logrus.Logger
	enabled bool
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore, logger *logrus.Logger, enabled bool) *AuditService {
	return &AuditService{store: store, logger: logger, enabled: enabled}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	UserID     *int64 // nil for pre-authentication events
	Action     string
	EntityType string
	EntityID   *int64
	Details    map[string]interface{}
}

// LogLogin logs a successful login
func (s *AuditService) LogLogin(ctx context.Context, userID int64, email string) {
	s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     models.AuditActionLogin,
		EntityType: "user",
		EntityID:   &userID,
		Details:    map[string]interface{}{"email": email},
	})
}

// LogRegister logs a new account
func (s *AuditService) LogRegister(ctx context.Context, userID int64, role models.UserRole) {
	s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     models.AuditActionRegister,
		EntityType: "user",
		EntityID:   &userID,
		Details:    map[string]interface{}{"role": role},
	})
}

// LogAdminAction logs an admin change to entityType/entityID
func (s *AuditService) LogAdminAction(ctx context.Context, actor Actor, action, entityType string, entityID int64, details map[string]interface{}) {
	s.logEvent(ctx, AuditEvent{
		UserID:     &actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		Details:    details,
	})
}

// Recent returns the latest audit rows, newest first
func (s *AuditService) Recent(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s == nil {
		return []models.AuditLog{}, nil
	}
	logs, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	return logs, nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	n, err := s.store.CleanupOldAuditLogs(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}
	return n, nil
}

func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) {
	if s == nil || !s.enabled {
		return
	}

	meta := utils.RequestMetaFrom(ctx)
	details := event.Details
	if details == nil {
		details = make(map[string]interface{})
	}
	if meta.UserAgent != "" {
		details["device_info"] = utils.ParseUserAgent(meta.UserAgent)
	}
	if meta.RequestID != "" {
		details["request_id"] = meta.RequestID
	}

	entry := &models.AuditLog{
		UserID:     event.UserID,
		Action:     event.Action,
		EntityType: models.NewNullString(&event.EntityType),
		EntityID:   event.EntityID,
		IPAddress:  models.NewNullString(&meta.IPAddress),
		UserAgent:  models.NewNullString(&meta.UserAgent),
	}

	if err := s.store.Insert(ctx, entry, details); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":      event.Action,
			"entity_type": event.EntityType,
		}).Warn("Failed to write audit log")
	}
}
