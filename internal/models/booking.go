package models

import (
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending             BookingStatus = "pending"
	BookingStatusConfirmed           BookingStatus = "confirmed"
	BookingStatusRescheduleRequested BookingStatus = "reschedule_requested"
	BookingStatusCompleted           BookingStatus = "completed"
	BookingStatusCancelled           BookingStatus = "cancelled"
)

// AllBookingStatuses lists every status a booking can take
var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusRescheduleRequested,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// Valid reports whether s is one of the defined statuses
func (s BookingStatus) Valid() bool {
	for _, st := range AllBookingStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further edit or transition is possible
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// IsEditable reports whether booking details may still be changed
func (s BookingStatus) IsEditable() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// BookingEvent names a transition of the booking state machine
type BookingEvent string

const (
	BookingEventAccept            BookingEvent = "accept"
	BookingEventReject            BookingEvent = "reject"
	BookingEventCancel            BookingEvent = "cancel"
	BookingEventComplete          BookingEvent = "complete"
	BookingEventProposeReschedule BookingEvent = "propose_reschedule"
	BookingEventAcceptReschedule  BookingEvent = "accept_reschedule"
	BookingEventDeclineReschedule BookingEvent = "decline_reschedule"
)

// RefundStatus tracks whether a booking's amount was returned to the customer
type RefundStatus string

const (
	RefundStatusNone     RefundStatus = "none"
	RefundStatusRefunded RefundStatus = "refunded"
)

// Booking is a customer's reservation of a provider for a date and time
type Booking struct {
	ID               int64          `json:"id" db:"id"`
	CustomerID       int64          `json:"customer_id" db:"customer_id"`
	ProviderID       int64          `json:"provider_id" db:"provider_id"`
	ServiceName      string         `json:"service_name" db:"service_name"`
	BookingDate      string         `json:"booking_date" db:"booking_date"` // YYYY-MM-DD
	BookingTime      string         `json:"booking_time" db:"booking_time"` // HH:MM
	DurationHours    int            `json:"duration_hours" db:"duration_hours"`
	Address          string         `json:"address" db:"address"`
	Notes            NullString     `json:"notes,omitempty" db:"notes"`
	Status           BookingStatus  `json:"status" db:"status"`
	TotalAmount      Money          `json:"total_amount" db:"total_amount_cents"`
	ProviderAmount   *Money         `json:"provider_amount" db:"provider_amount_cents"`
	CommissionAmount *Money         `json:"commission_amount" db:"commission_amount_cents"`
	SuggestedDate    NullString     `json:"suggested_date,omitempty" db:"suggested_date"`
	SuggestedTime    NullString     `json:"suggested_time,omitempty" db:"suggested_time"`
	PriorStatus      *BookingStatus `json:"prior_status,omitempty" db:"prior_status"`
	RefundStatus     RefundStatus   `json:"refund_status" db:"refund_status"`
	Version          int64          `json:"version" db:"version"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// EffectiveProviderAmount returns the provider's cut of a completed booking:
// the stored value, or total_amount scaled by shareBps when none was stored.
// ok is false for bookings that have not completed.
func (b *Booking) EffectiveProviderAmount(shareBps int64) (amount Money, ok bool) {
	if b.Status != BookingStatusCompleted {
		return 0, false
	}
	if b.ProviderAmount != nil {
		return *b.ProviderAmount, true
	}
	return b.TotalAmount.ShareBps(shareBps), true
}

// Split returns the provider and platform parts of the total amount
func (b *Booking) Split(shareBps int64) (provider, commission Money) {
	provider = b.TotalAmount.ShareBps(shareBps)
	return provider, b.TotalAmount - provider
}

// BookingDetails is a booking joined with the names of both parties
type BookingDetails struct {
	Booking
	CustomerName string `json:"customer_name" db:"customer_name"`
	ProviderName string `json:"provider_name" db:"provider_name"`
}

// BookingStatusEvent is the history row written with every committed transition
type BookingStatusEvent struct {
	ID         int64         `json:"id" db:"id"`
	BookingID  int64         `json:"booking_id" db:"booking_id"`
	Event      BookingEvent  `json:"event" db:"event"`
	FromStatus BookingStatus `json:"from_status" db:"from_status"`
	ToStatus   BookingStatus `json:"to_status" db:"to_status"`
	ActorRole  UserRole      `json:"actor_role" db:"actor_role"`
	ActorID    int64         `json:"actor_id" db:"actor_id"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// BookingFilter narrows booking listings
type BookingFilter struct {
	CustomerID *int64
	ProviderID *int64
	Status     *BookingStatus
	Limit      int
	Offset     int
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	ProviderID    int64   `json:"provider_id" binding:"required,gt=0"`
	ServiceName   string  `json:"service_name" binding:"required,max=100"`
	BookingDate   string  `json:"booking_date" binding:"required"`
	BookingTime   string  `json:"booking_time" binding:"required"`
	DurationHours int     `json:"duration_hours" binding:"required,min=1"`
	Address       string  `json:"address" binding:"required"`
	Notes         *string `json:"notes,omitempty"`
}

// EditBookingRequest carries the booking details to change; nil fields are kept
type EditBookingRequest struct {
	BookingDate     *string `json:"booking_date,omitempty"`
	BookingTime     *string `json:"booking_time,omitempty"`
	DurationHours   *int    `json:"duration_hours,omitempty"`
	Address         *string `json:"address,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

// IsEmpty reports whether the request changes nothing
func (r *EditBookingRequest) IsEmpty() bool {
	return r.BookingDate == nil && r.BookingTime == nil && r.DurationHours == nil &&
		r.Address == nil && r.Notes == nil
}

// TransitionRequest is the optional body of the plain transition endpoints
type TransitionRequest struct {
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// ProposeRescheduleRequest is sent by the provider to suggest a new slot
type ProposeRescheduleRequest struct {
	SuggestedDate   string `json:"suggested_date" form:"suggested_date" binding:"required"`
	SuggestedTime   string `json:"suggested_time" form:"suggested_time" binding:"required"`
	ExpectedVersion *int64 `json:"expected_version,omitempty" form:"expected_version"`
}

// RescheduleResponseRequest is the customer's answer to a reschedule proposal
type RescheduleResponseRequest struct {
	Accept          *bool  `json:"accept" form:"accept" binding:"required"`
	ExpectedVersion *int64 `json:"expected_version,omitempty" form:"expected_version"`
}
