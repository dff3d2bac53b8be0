package models

import (
	"time"
)

// Audit actions
const (
	AuditActionLogin             = "login"
	AuditActionRegister          = "register"
	AuditActionProviderVerified  = "provider_verified"
	AuditActionComplaintAction   = "complaint_action"
	AuditActionUserDeleted       = "user_deleted"
	AuditActionBookingsExported  = "bookings_exported"
	AuditActionBookingTransition = "booking_transition"
	AuditActionProfileUpdated    = "profile_updated"
	AuditActionInquiryStatus     = "inquiry_status"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         int64      `json:"id" db:"id"`
	UserID     *int64     `json:"user_id,omitempty" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType NullString `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   *int64     `json:"entity_id,omitempty" db:"entity_id"`
	IPAddress  NullString `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  NullString `json:"user_agent,omitempty" db:"user_agent"`
	Details    NullString `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
