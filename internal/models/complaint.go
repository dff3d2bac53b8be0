package models

import (
	"time"
)

// ComplaintStatus represents the review state of a complaint
type ComplaintStatus string

const (
	ComplaintStatusPending       ComplaintStatus = "pending"
	ComplaintStatusInvestigating ComplaintStatus = "investigating"
	ComplaintStatusResolved      ComplaintStatus = "resolved"
)

// Valid reports whether s is a defined complaint status
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintStatusPending, ComplaintStatusInvestigating, ComplaintStatusResolved:
		return true
	}
	return false
}

// ComplaintEvent names an admin action on a complaint
type ComplaintEvent string

const (
	ComplaintEventInvestigate ComplaintEvent = "investigate"
	ComplaintEventRefund      ComplaintEvent = "refund"
	ComplaintEventWarn        ComplaintEvent = "warn"
	ComplaintEventResolve     ComplaintEvent = "resolve"
)

// Complaint is filed by a customer about one of their bookings
type Complaint struct {
	ID           int64           `json:"id" db:"id"`
	BookingID    int64           `json:"booking_id" db:"booking_id"`
	CustomerID   int64           `json:"customer_id" db:"customer_id"`
	Subject      string          `json:"subject" db:"subject"`
	Description  string          `json:"description" db:"description"`
	Status       ComplaintStatus `json:"status" db:"status"`
	Resolution   NullString      `json:"resolution,omitempty" db:"resolution"`
	RefundedAt   NullTime        `json:"refunded_at,omitempty" db:"refunded_at"`
	WarningCount int             `json:"warning_count" db:"warning_count"`
	Version      int64           `json:"version" db:"version"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// IsRefunded reports whether the complaint already issued its refund
func (c *Complaint) IsRefunded() bool {
	return c.RefundedAt.Valid
}

// ComplaintDetails is a complaint joined with the booking context an admin needs
type ComplaintDetails struct {
	Complaint
	CustomerName string `json:"customer_name" db:"customer_name"`
	ProviderID   int64  `json:"provider_id" db:"provider_id"`
	ServiceName  string `json:"service_name" db:"service_name"`
	TotalAmount  Money  `json:"total_amount" db:"total_amount_cents"`
}

// CreateComplaintRequest is the body of POST /complaints
type CreateComplaintRequest struct {
	BookingID   int64  `json:"booking_id" binding:"required,gt=0"`
	Subject     string `json:"subject" binding:"required,max=200"`
	Description string `json:"description" binding:"required"`
}

// ComplaintActionRequest is the body of PATCH /admin/complaints/:id/:action.
// Resolution is only read by resolve.
type ComplaintActionRequest struct {
	Resolution      *string `json:"resolution,omitempty"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}
