package models

import (
	"time"
)

// VerificationStatus is the background-check state of a provider
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
)

// AvailabilityStatus is the provider's self-declared availability
type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityBusy        AvailabilityStatus = "busy"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
)

// Valid reports whether a is a defined availability value
func (a AvailabilityStatus) Valid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityUnavailable:
		return true
	}
	return false
}

// ProviderProfile holds the public and business data of a service provider
type ProviderProfile struct {
	ID                 int64              `json:"id" db:"id"`
	UserID             int64              `json:"user_id" db:"user_id"`
	ServiceType        string             `json:"service_type" db:"service_type"`
	HourlyRate         Money              `json:"hourly_rate" db:"hourly_rate_cents"`
	ExperienceYears    int                `json:"experience_years" db:"experience_years"`
	Location           string             `json:"location" db:"location"`
	Address            NullString         `json:"address,omitempty" db:"address"`
	Bio                NullString         `json:"bio,omitempty" db:"bio"`
	Rating             float64            `json:"rating" db:"rating"`
	TotalBookings      int                `json:"total_bookings" db:"total_bookings"`
	Earnings           Money              `json:"earnings" db:"earnings_cents"`
	WarningCount       int                `json:"warning_count" db:"warning_count"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status" db:"availability_status"`
	BackgroundVerified VerificationStatus `json:"background_verified" db:"background_verified"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// IsVerified reports whether the provider passed background verification
func (p *ProviderProfile) IsVerified() bool {
	return p.BackgroundVerified == VerificationVerified
}

// ProviderWithUser is a provider profile joined with its account details
type ProviderWithUser struct {
	ProviderProfile
	Name  string     `json:"name" db:"name"`
	Email string     `json:"email" db:"email"`
	Phone NullString `json:"phone,omitempty" db:"phone"`
}

// ProviderSort is the ordering of public provider listings
type ProviderSort string

const (
	ProviderSortRating     ProviderSort = "rating"
	ProviderSortPriceLow   ProviderSort = "price_low"
	ProviderSortPriceHigh  ProviderSort = "price_high"
	ProviderSortExperience ProviderSort = "experience"
)

// ProviderFilter narrows provider listings. Zero values mean "any".
type ProviderFilter struct {
	ServiceType  string             `form:"service_type"`
	Location     string             `form:"location"`
	MinRate      *float64           `form:"min_rate"` // major units
	MaxRate      *float64           `form:"max_rate"`
	MinRating    *float64           `form:"min_rating"`
	Availability AvailabilityStatus `form:"availability"`
	SortBy       ProviderSort       `form:"sort_by"`
	// Unverified includes providers still pending verification (admin only)
	Unverified bool `form:"-"`
	Limit      int  `form:"limit"`
	Offset     int  `form:"offset"`
}

// UpdateAvailabilityRequest is the body of PATCH /providers/me/availability
type UpdateAvailabilityRequest struct {
	AvailabilityStatus AvailabilityStatus `json:"availability_status" binding:"required"`
}
