package models

// StatusCount is one row of a GROUP BY status aggregation
type StatusCount struct {
	Status BookingStatus `db:"status"`
	Count  int           `db:"count"`
	Amount Money         `db:"amount_cents"`
}

// Dashboard is the role-parameterized booking summary
type Dashboard struct {
	Role          UserRole              `json:"role"`
	StatusCounts  map[BookingStatus]int `json:"status_counts"`
	TotalBookings int                   `json:"total_bookings"`

	// customer
	TotalSpent *Money `json:"total_spent,omitempty"`
	// customer and provider: sum of pending+confirmed+reschedule_requested
	PendingAmount *Money `json:"pending_amount,omitempty"`
	// provider
	Earnings *Money   `json:"earnings,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	// admin
	Stats *AdminStats `json:"stats,omitempty"`
}

// AdminStats are the platform-wide totals shown to admins
type AdminStats struct {
	Users            int   `json:"users" db:"users"`
	Providers        int   `json:"providers" db:"providers"`
	PendingProviders int   `json:"pending_providers" db:"pending_providers"`
	Bookings         int   `json:"bookings" db:"bookings"`
	OpenComplaints   int   `json:"open_complaints" db:"open_complaints"`
	TotalSales       Money `json:"total_sales" db:"total_sales_cents"`
	PlatformRevenue  Money `json:"platform_revenue" db:"platform_revenue_cents"`
}
