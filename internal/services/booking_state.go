package services

import (
	"github.com/homeserve/marketplace-backend/internal/models"
)

// bookingEdge is one row of the booking transition table. An empty to means
// "restore prior_status".
type bookingEdge struct {
	from  []models.BookingStatus
	actor models.UserRole
	to    models.BookingStatus
}

var bookingTransitions = map[models.BookingEvent]bookingEdge{
	models.BookingEventAccept: {
		from:  []models.BookingStatus{models.BookingStatusPending},
		actor: models.RoleProvider,
		to:    models.BookingStatusConfirmed,
	},
	models.BookingEventReject: {
		from:  []models.BookingStatus{models.BookingStatusPending},
		actor: models.RoleProvider,
		to:    models.BookingStatusCancelled,
	},
	models.BookingEventCancel: {
		from:  []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed},
		actor: models.RoleCustomer,
		to:    models.BookingStatusCancelled,
	},
	models.BookingEventComplete: {
		from:  []models.BookingStatus{models.BookingStatusConfirmed},
		actor: models.RoleProvider,
		to:    models.BookingStatusCompleted,
	},
	models.BookingEventProposeReschedule: {
		from:  []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed},
		actor: models.RoleProvider,
		to:    models.BookingStatusRescheduleRequested,
	},
	models.BookingEventAcceptReschedule: {
		from:  []models.BookingStatus{models.BookingStatusRescheduleRequested},
		actor: models.RoleCustomer,
		to:    models.BookingStatusConfirmed,
	},
	models.BookingEventDeclineReschedule: {
		from:  []models.BookingStatus{models.BookingStatusRescheduleRequested},
		actor: models.RoleCustomer,
	},
}

// ParseBookingEvent validates an event name coming from the transport layer
func ParseBookingEvent(s string) (models.BookingEvent, error) {
	e := models.BookingEvent(s)
	if _, ok := bookingTransitions[e]; !ok {
		return "", validation("event", "unknown booking event %q", s)
	}
	return e, nil
}

// canTransitionBooking reports whether role may fire event from status
func canTransitionBooking(status models.BookingStatus, event models.BookingEvent, role models.UserRole) bool {
	edge, ok := bookingTransitions[event]
	if !ok || edge.actor != role {
		return false
	}
	return containsStatus(edge.from, status)
}

// nextBookingStatus resolves the target of event for b, or an
// InvalidTransitionError when the edge does not exist for this state and role
func nextBookingStatus(b *models.Booking, event models.BookingEvent, role models.UserRole) (bookingEdge, models.BookingStatus, error) {
	invalid := func(reason string) error {
		return &InvalidTransitionError{
			Entity: "booking", ID: b.ID, Event: string(event),
			CurrentStatus: string(b.Status), Reason: reason,
		}
	}

	edge, ok := bookingTransitions[event]
	if !ok {
		return bookingEdge{}, "", invalid("unknown event")
	}
	if b.Status.IsTerminal() {
		return bookingEdge{}, "", invalid("booking is closed")
	}
	if edge.actor != role {
		return bookingEdge{}, "", invalid("only the " + string(edge.actor) + " may do this")
	}
	if !containsStatus(edge.from, b.Status) {
		return bookingEdge{}, "", invalid("")
	}

	to := edge.to
	if to == "" {
		if b.PriorStatus == nil || !b.PriorStatus.IsEditable() {
			return bookingEdge{}, "", invalid("no status recorded to return to")
		}
		to = *b.PriorStatus
	}
	return edge, to, nil
}

func containsStatus(set []models.BookingStatus, s models.BookingStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
