package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// InquiryStore persists contact-form messages
type InquiryStore interface {
	CreateInquiry(ctx context.Context, q *models.Inquiry) error
	ListInquiries(ctx context.Context, status *models.InquiryStatus, limit, offset int) ([]models.Inquiry, error)
	GetInquiry(ctx context.Context, id int64) (*models.Inquiry, error)
	UpdateStatus(ctx context.Context, id int64, from []models.InquiryStatus, status models.InquiryStatus) (*models.Inquiry, error)
}

// InquiryService accepts contact messages and lets admins work through them
type InquiryService struct {
	inquiries InquiryStore
	audit     *AuditService
	logger    *logrus.Logger
	phones    *validator.PhoneValidator
}

// NewInquiryService creates a new inquiry service
func NewInquiryService(inquiries InquiryStore, audit *AuditService, logger *logrus.Logger) *InquiryService {
	return &InquiryService{
		inquiries: inquiries,
		audit:     audit,
		logger:    logger,
		phones:    validator.NewPhoneValidator(),
	}
}

// Submit stores a new inquiry. Anyone may submit; a signed-in sender is
// linked to the row.
func (s *InquiryService) Submit(ctx context.Context, actor Actor, req *models.CreateInquiryRequest) (*models.Inquiry, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validation("name", "is required")
	}
	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		return nil, validation("email", "%s", err.Error())
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, validation("subject", "is required")
	}
	if len(subject) > 200 {
		return nil, validation("subject", "must be at most 200 characters")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, validation("message", "is required")
	}

	var phone *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		p, err := s.phones.Validate(*req.Phone)
		if err != nil {
			return nil, validation("phone", "%s", err.Error())
		}
		phone = &p
	}

	q := &models.Inquiry{
		Name:    name,
		Email:   email,
		Phone:   models.NewNullString(phone),
		Subject: subject,
		Message: message,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		q.UserID = &uid
	}
	if err := s.inquiries.CreateInquiry(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to submit inquiry: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"inquiry_id": q.ID,
		"email":      q.Email,
	}).Info("Inquiry received")
	return q, nil
}

// List returns inquiries for admins, optionally narrowed to one status
func (s *InquiryService) List(ctx context.Context, actor Actor, status *models.InquiryStatus, limit, offset int) ([]models.Inquiry, error) {
	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "only admins can list inquiries"}
	}
	if status != nil && !status.Valid() {
		return nil, validation("status", "unknown inquiry status %q", *status)
	}
	list, err := s.inquiries.ListInquiries(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	return list, nil
}

// UpdateStatus moves an inquiry to status. Closed inquiries stay closed.
func (s *InquiryService) UpdateStatus(ctx context.Context, actor Actor, id int64, status models.InquiryStatus) (*models.Inquiry, error) {
	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "only admins can update inquiries"}
	}
	if !status.Valid() {
		return nil, validation("status", "unknown inquiry status %q", status)
	}

	q, err := s.inquiries.GetInquiry(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "inquiry", ID: id}
		}
		return nil, fmt.Errorf("failed to get inquiry: %w", err)
	}
	if q.Status == models.InquiryStatusClosed {
		return nil, &InvalidTransitionError{
			Entity: "inquiry", ID: id, Event: string(status),
			CurrentStatus: string(q.Status), Reason: "inquiry is closed",
		}
	}
	if q.Status == status {
		return q, nil
	}

	updated, err := s.inquiries.UpdateStatus(ctx, id, []models.InquiryStatus{models.InquiryStatusNew, models.InquiryStatusInProgress}, status)
	if err != nil {
		if errors.Is(err, database.ErrStaleWrite) {
			return nil, &InvalidTransitionError{
				Entity: "inquiry", ID: id, Event: string(status),
				CurrentStatus: string(models.InquiryStatusClosed), Reason: "inquiry is closed",
			}
		}
		return nil, fmt.Errorf("failed to update inquiry: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"inquiry_id": id,
		"from":       q.Status,
		"status":     updated.Status,
		"admin_id":   actor.UserID,
	}).Info("Inquiry status updated")

	s.audit.LogAdminAction(ctx, actor, models.AuditActionInquiryStatus, "inquiry", id,
		map[string]interface{}{"from_status": q.Status, "status": updated.Status})
	return updated, nil
}
