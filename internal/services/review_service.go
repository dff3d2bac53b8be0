package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ReviewStore persists reviews and keeps provider ratings in step
type ReviewStore interface {
	CreateReview(ctx context.Context, rv *models.Review) error
	GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error)
	ListByProvider(ctx context.Context, providerID int64) ([]models.ReviewWithCustomer, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]models.Review, error)
}

// ReviewService lets customers rate completed bookings
type ReviewService struct {
	reviews  ReviewStore
	bookings BookingReader
	bus      *events.EventBus
	logger   *logrus.Logger
}

// NewReviewService creates a new review service
func NewReviewService(reviews ReviewStore, bookings BookingReader, bus *events.EventBus, logger *logrus.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, bookings: bookings, bus: bus, logger: logger}
}

// CreateReview rates a completed booking of the calling customer. A booking
// is reviewed at most once.
func (s *ReviewService) CreateReview(ctx context.Context, actor Actor, req *models.CreateReviewRequest) (*models.Review, error) {
	if !actor.is(models.RoleCustomer) {
		return nil, &ForbiddenError{Message: "only customers can write reviews"}
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, validation("rating", "must be between 1 and 5")
	}

	b, err := s.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "booking", ID: req.BookingID}
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if b.CustomerID != actor.UserID {
		return nil, &ForbiddenError{Message: "booking does not belong to you"}
	}
	if b.Status != models.BookingStatusCompleted {
		return nil, validation("booking_id", "only completed bookings can be reviewed")
	}

	var comment *string
	if req.Comment != nil {
		trimmed := strings.TrimSpace(*req.Comment)
		comment = &trimmed
	}

	rv := &models.Review{
		BookingID:  b.ID,
		ProviderID: b.ProviderID,
		CustomerID: actor.UserID,
		Rating:     req.Rating,
		Comment:    models.NewNullString(comment),
	}
	if err := s.reviews.CreateReview(ctx, rv); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, validation("booking_id", "booking has already been reviewed")
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"review_id":   rv.ID,
		"booking_id":  rv.BookingID,
		"provider_id": rv.ProviderID,
		"rating":      rv.Rating,
	}).Info("Review created")

	if err := s.bus.PublishJSON(events.EventReviewCreated, events.ProviderEventPayload{ProviderID: rv.ProviderID}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish review event")
	}
	return rv, nil
}

// ListProviderReviews returns a provider's reviews, newest first
func (s *ReviewService) ListProviderReviews(ctx context.Context, providerID int64) ([]models.ReviewWithCustomer, error) {
	list, err := s.reviews.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return list, nil
}

// ListCustomerReviews returns the reviews the calling customer wrote
func (s *ReviewService) ListCustomerReviews(ctx context.Context, actor Actor) ([]models.Review, error) {
	if !actor.is(models.RoleCustomer) {
		return nil, &ForbiddenError{Message: "only customers write reviews"}
	}
	list, err := s.reviews.ListByCustomer(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return list, nil
}
