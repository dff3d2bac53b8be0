package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/metrics"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// BookingStore persists bookings and their history
type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.BookingDetails, error)
	ApplyTransition(ctx context.Context, t *database.BookingTransition) (*models.Booking, error)
	UpdateDetails(ctx context.Context, u *database.BookingUpdate) (*models.Booking, error)
	ListEvents(ctx context.Context, bookingID int64) ([]models.BookingStatusEvent, error)
}

// ProviderLookup resolves provider profiles
type ProviderLookup interface {
	GetProvider(ctx context.Context, id int64) (*models.ProviderWithUser, error)
	GetProviderByUserID(ctx context.Context, userID int64) (*models.ProviderWithUser, error)
}

// EarningsLine is one completed booking in a provider's earnings report
type EarningsLine struct {
	BookingID      int64        `json:"booking_id"`
	BookingDate    string       `json:"booking_date"`
	ServiceName    string       `json:"service_name"`
	CustomerName   string       `json:"customer_name"`
	TotalAmount    models.Money `json:"total_amount"`
	ProviderAmount models.Money `json:"provider_amount"`
	Commission     models.Money `json:"commission_amount"`
}

// EarningsReport sums a provider's completed bookings
type EarningsReport struct {
	ProviderID        int64          `json:"provider_id"`
	CompletedBookings int            `json:"completed_bookings"`
	TotalEarnings     models.Money   `json:"total_earnings"`
	TotalCommission   models.Money   `json:"total_commission"`
	Bookings          []EarningsLine `json:"bookings"`
}

// BookingService owns the booking lifecycle: creation, the transition state
// machine, reschedule negotiation and detail edits
type BookingService struct {
	bookings  BookingStore
	providers ProviderLookup
	bus       *events.EventBus
	rules     config.MarketplaceConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	bookings BookingStore,
	providers ProviderLookup,
	bus *events.EventBus,
	rules config.MarketplaceConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		providers: providers,
		bus:       bus,
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking books a verified provider for the calling customer. The
// total is hourly_rate * duration_hours at the moment of booking.
func (s *BookingService) CreateBooking(ctx context.Context, actor Actor, req *models.CreateBookingRequest) (*models.Booking, error) {
	if !actor.is(models.RoleCustomer) {
		return nil, &ForbiddenError{Message: "only customers can create bookings"}
	}

	date, clock, err := s.validateSlot(req.BookingDate, req.BookingTime, "booking_date", "booking_time")
	if err != nil {
		return nil, err
	}
	if err := s.validateDuration(req.DurationHours); err != nil {
		return nil, err
	}
	serviceName := strings.TrimSpace(req.ServiceName)
	if serviceName == "" {
		return nil, validation("service_name", "is required")
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, validation("address", "is required")
	}

	provider, err := s.providers.GetProvider(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "provider", ID: req.ProviderID}
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	if !provider.IsVerified() {
		return nil, validation("provider_id", "provider is not verified")
	}

	booking := &models.Booking{
		CustomerID:    actor.UserID,
		ProviderID:    provider.ID,
		ServiceName:   serviceName,
		BookingDate:   date,
		BookingTime:   clock,
		DurationHours: req.DurationHours,
		Address:       address,
		Notes:         models.NewNullString(req.Notes),
		Status:        models.BookingStatusPending,
		TotalAmount:   provider.HourlyRate.MulInt(req.DurationHours),
		RefundStatus:  models.RefundStatusNone,
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, &NotFoundError{Entity: "provider", ID: req.ProviderID}
		case errors.Is(err, database.ErrProviderUnverified):
			return nil, validation("provider_id", "provider is not verified")
		case errors.Is(err, database.ErrSlotTaken):
			return nil, validation("booking_date", "provider already has a booking on %s", date)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"customer_id":  booking.CustomerID,
		"provider_id":  booking.ProviderID,
		"booking_date": booking.BookingDate,
		"total_amount": booking.TotalAmount.String(),
	}).Info("Booking created")

	s.publish(events.EventBookingCreated, booking, "", "", actor)
	return booking, nil
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// TransitionBooking fires a lifecycle event that needs no extra input:
// accept, reject, cancel, complete, accept_reschedule, decline_reschedule.
// expectedVersion, when set, must match the stored version.
func (s *BookingService) TransitionBooking(
	ctx context.Context,
	actor Actor,
	bookingID int64,
	event models.BookingEvent,
	expectedVersion *int64,
) (*models.Booking, error) {
	if event == models.BookingEventProposeReschedule {
		return nil, validation("suggested_date", "a reschedule proposal needs a suggested date and time")
	}
	return s.transition(ctx, actor, bookingID, event, expectedVersion, nil)
}

// ProposeReschedule lets the provider suggest a new date and time. The
// booking moves to reschedule_requested and remembers the status to return
// to if the customer declines.
func (s *BookingService) ProposeReschedule(
	ctx context.Context,
	actor Actor,
	bookingID int64,
	req *models.ProposeRescheduleRequest,
) (*models.Booking, error) {
	date, clock, err := s.validateSlot(req.SuggestedDate, req.SuggestedTime, "suggested_date", "suggested_time")
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, bookingID, models.BookingEventProposeReschedule, req.ExpectedVersion,
		func(b *models.Booking, t *database.BookingTransition) {
			prior := b.Status
			t.SuggestedDate = &date
			t.SuggestedTime = &clock
			t.PriorStatus = &prior
			t.ClaimDate = &date
		})
}

// RespondReschedule applies the customer's answer to a pending proposal
func (s *BookingService) RespondReschedule(
	ctx context.Context,
	actor Actor,
	bookingID int64,
	accept bool,
	expectedVersion *int64,
) (*models.Booking, error) {
	event := models.BookingEventDeclineReschedule
	if accept {
		event = models.BookingEventAcceptReschedule
	}
	return s.transition(ctx, actor, bookingID, event, expectedVersion, nil)
}

func (s *BookingService) transition(
	ctx context.Context,
	actor Actor,
	bookingID int64,
	event models.BookingEvent,
	expectedVersion *int64,
	prepare func(*models.Booking, *database.BookingTransition),
) (_ *models.Booking, err error) {
	defer func() { metrics.IncBookingTransition(string(event), outcome(err)) }()

	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, b); err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != b.Version {
		return nil, &ConflictError{Entity: "booking", ID: b.ID, Expected: *expectedVersion, Actual: b.Version}
	}

	edge, to, err := nextBookingStatus(b, event, actor.Role)
	if err != nil {
		return nil, err
	}

	t := &database.BookingTransition{
		BookingID:       b.ID,
		Event:           event,
		From:            edge.from,
		Current:         b.Status,
		To:              to,
		ExpectedVersion: b.Version,
		ActorRole:       actor.Role,
		ActorID:         actor.UserID,
		ProviderID:      b.ProviderID,
	}

	switch event {
	case models.BookingEventAcceptReschedule:
		if !b.SuggestedDate.Valid || !b.SuggestedTime.Valid {
			return nil, &InvalidTransitionError{
				Entity: "booking", ID: b.ID, Event: string(event), CurrentStatus: string(b.Status),
				Reason: "no suggested date to accept",
			}
		}
		t.ClaimDate = &b.SuggestedDate.String
		t.ApplySuggestion = true
		t.ClearSuggestion = true
	case models.BookingEventDeclineReschedule:
		t.ClearSuggestion = true
	case models.BookingEventComplete:
		provider, commission := b.Split(s.rules.ProviderShareBps)
		t.ProviderAmount = &provider
		t.CommissionAmount = &commission
	}
	if prepare != nil {
		prepare(b, t)
	}

	updated, err := s.bookings.ApplyTransition(ctx, t)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrStaleWrite):
			return nil, &ConflictError{Entity: "booking", ID: b.ID, Expected: b.Version}
		case errors.Is(err, database.ErrSlotTaken):
			return nil, validation("suggested_date", "provider already has a booking on %s", *t.ClaimDate)
		}
		return nil, fmt.Errorf("failed to apply %s: %w", event, err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"event":      event,
		"from":       b.Status,
		"to":         updated.Status,
		"actor_role": actor.Role,
		"actor_id":   actor.UserID,
		"version":    updated.Version,
	}).Info("Booking transitioned")

	s.publish(events.EventBookingTransitioned, updated, event, b.Status, actor)
	return updated, nil
}

// ============================================================================
// EDIT
// ============================================================================

// EditBooking changes the details of a pending or confirmed booking. The
// write is conditional on the booking still being editable at the version
// read; losing that race is a ConflictError.
func (s *BookingService) EditBooking(ctx context.Context, actor Actor, bookingID int64, req *models.EditBookingRequest) (*models.Booking, error) {
	if req.IsEmpty() {
		return nil, validation("", "no fields to update")
	}
	if !actor.is(models.RoleCustomer) {
		return nil, &ForbiddenError{Message: "only the customer can edit a booking"}
	}

	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, b); err != nil {
		return nil, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != b.Version {
		return nil, &ConflictError{Entity: "booking", ID: b.ID, Expected: *req.ExpectedVersion, Actual: b.Version}
	}
	if !b.Status.IsEditable() {
		return nil, &InvalidTransitionError{
			Entity: "booking", ID: b.ID, Event: "edit", CurrentStatus: string(b.Status),
			Reason: "only pending or confirmed bookings can be edited",
		}
	}

	upd := &database.BookingUpdate{BookingID: b.ID, ProviderID: b.ProviderID, ExpectedVersion: b.Version}

	if req.BookingDate != nil {
		date, err := validator.ValidateBookingDate(*req.BookingDate, s.now(), s.rules.MaxBookingDaysAhead)
		if err != nil {
			return nil, validation("booking_date", "%s", err.Error())
		}
		upd.BookingDate = &date
	}
	if req.BookingTime != nil {
		clock, err := validator.ParseClock(*req.BookingTime)
		if err != nil {
			return nil, validation("booking_time", "%s", err.Error())
		}
		upd.BookingTime = &clock
	}
	if req.Address != nil {
		address := strings.TrimSpace(*req.Address)
		if address == "" {
			return nil, validation("address", "cannot be empty")
		}
		upd.Address = &address
	}
	upd.Notes = req.Notes

	if req.DurationHours != nil && *req.DurationHours != b.DurationHours {
		if err := s.validateDuration(*req.DurationHours); err != nil {
			return nil, err
		}
		provider, err := s.providers.GetProvider(ctx, b.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("failed to get provider: %w", err)
		}
		total := provider.HourlyRate.MulInt(*req.DurationHours)
		upd.DurationHours = req.DurationHours
		upd.TotalAmount = &total
	}

	updated, err := s.bookings.UpdateDetails(ctx, upd)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrStaleWrite):
			return nil, &ConflictError{Entity: "booking", ID: b.ID, Expected: b.Version}
		case errors.Is(err, database.ErrSlotTaken):
			return nil, validation("booking_date", "provider already has a booking on %s", *upd.BookingDate)
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"version":    updated.Version,
	}).Info("Booking edited")

	s.publish(events.EventBookingEdited, updated, "", "", actor)
	return updated, nil
}

// ============================================================================
// READS
// ============================================================================

// GetBooking returns a booking visible to actor
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, bookingID int64) (*models.Booking, error) {
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookings returns the actor's bookings: their own for customers and
// providers, all bookings for admins
func (s *BookingService) ListBookings(ctx context.Context, actor Actor, status *models.BookingStatus, limit, offset int) ([]models.BookingDetails, error) {
	if status != nil && !status.Valid() {
		return nil, validation("status", "unknown booking status %q", *status)
	}

	f := models.BookingFilter{Status: status, Limit: limit, Offset: offset}
	switch actor.Role {
	case models.RoleCustomer:
		f.CustomerID = &actor.UserID
	case models.RoleProvider:
		pid, err := s.providerID(ctx, actor)
		if err != nil {
			return nil, err
		}
		f.ProviderID = &pid
	case models.RoleAdmin:
	default:
		return nil, &ForbiddenError{Message: "unknown role"}
	}

	list, err := s.bookings.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return list, nil
}

// BookingHistory returns the committed transitions of a booking, oldest first
func (s *BookingService) BookingHistory(ctx context.Context, actor Actor, bookingID int64) ([]models.BookingStatusEvent, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	history, err := s.bookings.ListEvents(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking history: %w", err)
	}
	return history, nil
}

// ProviderEarnings reports the provider's cut of every completed booking.
// Bookings completed before the split was stored fall back to the configured share.
// A provider may only read their own report; providerID 0 means "mine".
func (s *BookingService) ProviderEarnings(ctx context.Context, actor Actor, providerID int64) (*EarningsReport, error) {
	switch actor.Role {
	case models.RoleProvider:
		own, err := s.providerID(ctx, actor)
		if err != nil {
			return nil, err
		}
		if providerID != 0 && providerID != own {
			return nil, &ForbiddenError{Message: "you can only view your own earnings"}
		}
		providerID = own
	case models.RoleAdmin:
		if providerID == 0 {
			return nil, validation("provider_id", "is required")
		}
	default:
		return nil, &ForbiddenError{Message: "only providers and admins can view earnings"}
	}

	completed := models.BookingStatusCompleted
	list, err := s.bookings.ListBookings(ctx, models.BookingFilter{ProviderID: &providerID, Status: &completed})
	if err != nil {
		return nil, fmt.Errorf("failed to list completed bookings: %w", err)
	}

	report := &EarningsReport{ProviderID: providerID, Bookings: make([]EarningsLine, 0, len(list))}
	for i := range list {
		b := &list[i]
		amount, ok := b.EffectiveProviderAmount(s.rules.ProviderShareBps)
		if !ok {
			continue
		}
		commission := b.TotalAmount - amount
		if b.CommissionAmount != nil {
			commission = *b.CommissionAmount
		}
		report.Bookings = append(report.Bookings, EarningsLine{
			BookingID:      b.ID,
			BookingDate:    b.BookingDate,
			ServiceName:    b.ServiceName,
			CustomerName:   b.CustomerName,
			TotalAmount:    b.TotalAmount,
			ProviderAmount: amount,
			Commission:     commission,
		})
		report.CompletedBookings++
		report.TotalEarnings += amount
		report.TotalCommission += commission
	}
	return report, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *BookingService) getBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "booking", ID: id}
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// authorize checks that actor is a party to b. Admins see every booking;
// whether they may act on it is up to the state machine.
func (s *BookingService) authorize(ctx context.Context, actor Actor, b *models.Booking) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleCustomer:
		if b.CustomerID == actor.UserID {
			return nil
		}
	case models.RoleProvider:
		pid, err := s.providerID(ctx, actor)
		if err != nil {
			return err
		}
		if b.ProviderID == pid {
			return nil
		}
	}
	return &ForbiddenError{Message: "booking does not belong to you"}
}

func (s *BookingService) providerID(ctx context.Context, actor Actor) (int64, error) {
	if actor.ProviderID != 0 {
		return actor.ProviderID, nil
	}
	p, err := s.providers.GetProviderByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, &ForbiddenError{Message: "no provider profile for this account"}
		}
		return 0, fmt.Errorf("failed to get provider profile: %w", err)
	}
	return p.ID, nil
}

func (s *BookingService) validateSlot(date, clock, dateField, timeField string) (string, string, error) {
	d, err := validator.ValidateBookingDate(date, s.now(), s.rules.MaxBookingDaysAhead)
	if err != nil {
		return "", "", validation(dateField, "%s", err.Error())
	}
	c, err := validator.ParseClock(clock)
	if err != nil {
		return "", "", validation(timeField, "%s", err.Error())
	}
	return d, c, nil
}

func (s *BookingService) validateDuration(hours int) error {
	if hours < 1 {
		return validation("duration_hours", "must be at least 1")
	}
	if s.rules.MaxDurationHours > 0 && hours > s.rules.MaxDurationHours {
		return validation("duration_hours", "must be at most %d", s.rules.MaxDurationHours)
	}
	return nil
}

func (s *BookingService) publish(eventType string, b *models.Booking, event models.BookingEvent, from models.BookingStatus, actor Actor) {
	err := s.bus.PublishJSON(eventType, events.BookingEventPayload{
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		ProviderID: b.ProviderID,
		Event:      string(event),
		FromStatus: string(from),
		Status:     string(b.Status),
		ActorRole:  string(actor.Role),
		ActorID:    actor.UserID,
		Version:    b.Version,
	})
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("Failed to publish booking event")
	}
}

// outcome labels an operation result for metrics
func outcome(err error) string {
	var (
		invalid   *InvalidTransitionError
		conflict  *ConflictError
		notFound  *NotFoundError
		forbidden *ForbiddenError
		invalidIn *ValidationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &invalid):
		return "invalid_transition"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &forbidden):
		return "forbidden"
	case errors.As(err, &invalidIn):
		return "validation"
	default:
		return "error"
	}
}
