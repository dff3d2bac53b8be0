package models

import (
	"time"
)

// InquiryStatus tracks how far the support team got with a contact message
type InquiryStatus string

const (
	InquiryStatusNew        InquiryStatus = "new"
	InquiryStatusInProgress InquiryStatus = "in_progress"
	InquiryStatusClosed     InquiryStatus = "closed"
)

// Valid reports whether s is a defined inquiry status
func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryStatusNew, InquiryStatusInProgress, InquiryStatusClosed:
		return true
	}
	return false
}

// Inquiry is a contact-form message. UserID is set when the sender was
// signed in.
type Inquiry struct {
	ID        int64         `json:"id" db:"id"`
	UserID    *int64        `json:"user_id,omitempty" db:"user_id"`
	Name      string        `json:"name" db:"name"`
	Email     string        `json:"email" db:"email"`
	Phone     NullString    `json:"phone,omitempty" db:"phone"`
	Subject   string        `json:"subject" db:"subject"`
	Message   string        `json:"message" db:"message"`
	Status    InquiryStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateInquiryRequest is the body of POST /inquiries
type CreateInquiryRequest struct {
	Name    string  `json:"name" binding:"required,max=100"`
	Email   string  `json:"email" binding:"required,email"`
	Phone   *string `json:"phone,omitempty"`
	Subject string  `json:"subject" binding:"required,max=200"`
	Message string  `json:"message" binding:"required,max=5000"`
}

// UpdateInquiryStatusRequest is the body of PATCH /admin/inquiries/:id/status
type UpdateInquiryStatusRequest struct {
	Status InquiryStatus `json:"status" form:"status" binding:"required"`
}
