package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/metrics"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ComplaintStore persists complaints and runs the refund/warn side effects
type ComplaintStore interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id int64) (*models.Complaint, error)
	ListComplaints(ctx context.Context, status *models.ComplaintStatus, customerID *int64) ([]models.ComplaintDetails, error)
	ApplyTransition(ctx context.Context, t *database.ComplaintTransition) (*models.Complaint, error)
	Refund(ctx context.Context, t *database.ComplaintTransition) (*database.RefundResult, error)
	Warn(ctx context.Context, t *database.ComplaintTransition) (*models.Complaint, error)
}

// BookingReader is the read side of BookingStore
type BookingReader interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
}

// ComplaintService runs the complaint resolution workflow
type ComplaintService struct {
	complaints ComplaintStore
	bookings   BookingReader
	audit      *AuditService
	bus        *events.EventBus
	logger     *logrus.Logger
}

// NewComplaintService creates a new complaint service
func NewComplaintService(
	complaints ComplaintStore,
	bookings BookingReader,
	audit *AuditService,
	bus *events.EventBus,
	logger *logrus.Logger,
) *ComplaintService {
	return &ComplaintService{
		complaints: complaints,
		bookings:   bookings,
		audit:      audit,
		bus:        bus,
		logger:     logger,
	}
}

// FileComplaint opens a pending complaint about one of the customer's bookings
func (s *ComplaintService) FileComplaint(ctx context.Context, actor Actor, req *models.CreateComplaintRequest) (*models.Complaint, error) {
	if !actor.is(models.RoleCustomer) {
		return nil, &ForbiddenError{Message: "only customers can file complaints"}
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, validation("subject", "is required")
	}
	if len(subject) > 200 {
		return nil, validation("subject", "must be at most 200 characters")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, validation("description", "is required")
	}

	booking, err := s.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "booking", ID: req.BookingID}
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking.CustomerID != actor.UserID {
		return nil, &ForbiddenError{Message: "booking does not belong to you"}
	}

	c := &models.Complaint{
		BookingID:   booking.ID,
		CustomerID:  actor.UserID,
		Subject:     subject,
		Description: description,
	}
	if err := s.complaints.CreateComplaint(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to file complaint: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"complaint_id": c.ID,
		"booking_id":   c.BookingID,
		"customer_id":  c.CustomerID,
	}).Info("Complaint filed")

	s.publish(events.EventComplaintFiled, c, booking.ProviderID, "file")
	return c, nil
}

// TransitionComplaint applies an admin action. resolution is required for
// resolve and ignored otherwise.
func (s *ComplaintService) TransitionComplaint(
	ctx context.Context,
	actor Actor,
	complaintID int64,
	event models.ComplaintEvent,
	resolution *string,
	expectedVersion *int64,
) (_ *models.Complaint, err error) {
	defer func() { metrics.IncComplaintAction(string(event), outcome(err)) }()

	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "only admins can act on complaints"}
	}

	var text *string
	if event == models.ComplaintEventResolve {
		if resolution == nil || strings.TrimSpace(*resolution) == "" {
			return nil, validation("resolution", "is required to resolve a complaint")
		}
		trimmed := strings.TrimSpace(*resolution)
		text = &trimmed
	}

	c, err := s.getComplaint(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != c.Version {
		return nil, &ConflictError{Entity: "complaint", ID: c.ID, Expected: *expectedVersion, Actual: c.Version}
	}

	from, to, err := nextComplaintStatus(c, event)
	if err != nil {
		return nil, err
	}

	t := &database.ComplaintTransition{
		ComplaintID:     c.ID,
		Event:           event,
		From:            from,
		To:              to,
		ExpectedVersion: c.Version,
		Resolution:      text,
	}

	var (
		updated    *models.Complaint
		providerID int64
		details    = map[string]interface{}{"event": event, "from_status": c.Status}
	)

	switch event {
	case models.ComplaintEventRefund:
		if c.IsRefunded() {
			return nil, &InvalidTransitionError{
				Entity: "complaint", ID: c.ID, Event: string(event),
				CurrentStatus: string(c.Status), Reason: "complaint already refunded",
			}
		}
		var res *database.RefundResult
		res, err = s.complaints.Refund(ctx, t)
		if errors.Is(err, database.ErrAlreadyRefunded) {
			return nil, &InvalidTransitionError{
				Entity: "complaint", ID: c.ID, Event: string(event),
				CurrentStatus: string(c.Status), Reason: "booking already refunded",
			}
		}
		if err == nil {
			updated = res.Complaint
			metrics.AddRefund(int64(res.Transaction.Amount))
			details["amount"] = res.Transaction.Amount.String()
			details["reference_id"] = res.Transaction.ReferenceID
			s.logger.WithFields(logrus.Fields{
				"complaint_id": c.ID,
				"booking_id":   c.BookingID,
				"customer_id":  res.Transaction.UserID,
				"amount":       res.Transaction.Amount.String(),
			}).Info("Refund issued")
		}

	case models.ComplaintEventWarn:
		updated, err = s.complaints.Warn(ctx, t)
		if err == nil {
			if b, berr := s.bookings.GetBooking(ctx, c.BookingID); berr == nil {
				providerID = b.ProviderID
				details["provider_id"] = providerID
			}
		}

	default:
		updated, err = s.complaints.ApplyTransition(ctx, t)
	}

	if err != nil {
		if errors.Is(err, database.ErrStaleWrite) {
			return nil, &ConflictError{Entity: "complaint", ID: c.ID, Expected: c.Version}
		}
		return nil, fmt.Errorf("failed to %s complaint: %w", event, err)
	}

	s.logger.WithFields(logrus.Fields{
		"complaint_id": updated.ID,
		"event":        event,
		"status":       updated.Status,
		"admin_id":     actor.UserID,
	}).Info("Complaint action applied")

	s.audit.LogAdminAction(ctx, actor, models.AuditActionComplaintAction, "complaint", updated.ID, details)
	s.publish(events.EventComplaintAction, updated, providerID, string(event))
	return updated, nil
}

// ListComplaints returns every complaint, optionally narrowed to one status
func (s *ComplaintService) ListComplaints(ctx context.Context, actor Actor, status *models.ComplaintStatus) ([]models.ComplaintDetails, error) {
	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "only admins can list all complaints"}
	}
	if status != nil && !status.Valid() {
		return nil, validation("status", "unknown complaint status %q", *status)
	}
	list, err := s.complaints.ListComplaints(ctx, status, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	return list, nil
}

// ListCustomerComplaints returns the complaints the actor filed
func (s *ComplaintService) ListCustomerComplaints(ctx context.Context, actor Actor) ([]models.ComplaintDetails, error) {
	if !actor.is(models.RoleCustomer) {
		return nil, &ForbiddenError{Message: "only customers have complaints"}
	}
	list, err := s.complaints.ListComplaints(ctx, nil, &actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	return list, nil
}

// GetComplaint returns a complaint to its customer or an admin
func (s *ComplaintService) GetComplaint(ctx context.Context, actor Actor, id int64) (*models.Complaint, error) {
	c, err := s.getComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.is(models.RoleAdmin) && c.CustomerID != actor.UserID {
		return nil, &ForbiddenError{Message: "complaint does not belong to you"}
	}
	return c, nil
}

func (s *ComplaintService) getComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	c, err := s.complaints.GetComplaint(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "complaint", ID: id}
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return c, nil
}

func (s *ComplaintService) publish(eventType string, c *models.Complaint, providerID int64, action string) {
	err := s.bus.PublishJSON(eventType, events.ComplaintEventPayload{
		ComplaintID: c.ID,
		BookingID:   c.BookingID,
		ProviderID:  providerID,
		CustomerID:  c.CustomerID,
		Action:      action,
		Status:      string(c.Status),
	})
	if err != nil {
		s.logger.WithError(err).WithField("complaint_id", c.ID).Warn("Failed to publish complaint event")
	}
}
