package models

import (
	"time"
)

// Review is a customer's rating of a completed booking
type Review struct {
	ID         int64      `json:"id" db:"id"`
	BookingID  int64      `json:"booking_id" db:"booking_id"`
	ProviderID int64      `json:"provider_id" db:"provider_id"`
	CustomerID int64      `json:"customer_id" db:"customer_id"`
	Rating     int        `json:"rating" db:"rating"`
	Comment    NullString `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// ReviewWithCustomer adds the reviewer's name for public listings
type ReviewWithCustomer struct {
	Review
	CustomerName string `json:"customer_name" db:"customer_name"`
}

// CreateReviewRequest is the body of POST /reviews
type CreateReviewRequest struct {
	BookingID int64   `json:"booking_id" binding:"required,gt=0"`
	Rating    int     `json:"rating" binding:"required,min=1,max=5"`
	Comment   *string `json:"comment,omitempty" binding:"omitempty,max=2000"`
}
