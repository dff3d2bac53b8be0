package services

import (
	"fmt"
	"strconv"
)

// ValidationError reports bad input for a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// InvalidTransitionError reports an event that is not a legal edge from the
// entity's current state, including a legal event sent by the wrong role
type InvalidTransitionError struct {
	Entity        string
	ID            int64
	Event         string
	CurrentStatus string
	Reason        string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s %s %d in status %q", e.Event, e.Entity, e.ID, e.CurrentStatus)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ConflictError reports a compare-and-set miss: someone else changed the
// entity since the caller read it
type ConflictError struct {
	Entity   string
	ID       int64
	Expected int64
	Actual   int64 // 0 when unknown
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s %d was modified concurrently (expected version %d", e.Entity, e.ID, e.Expected)
	if e.Actual > 0 {
		msg += ", found " + strconv.FormatInt(e.Actual, 10)
	}
	return msg + "); refetch and retry"
}

// NotFoundError reports a missing entity
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ForbiddenError reports an actor acting on an entity it does not own
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// UnauthorizedError reports failed authentication
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

func validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
