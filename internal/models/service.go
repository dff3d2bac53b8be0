package models

// Service is an entry of the read-only service catalog
type Service struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description NullString `json:"description,omitempty" db:"description"`
	BasePrice   Money      `json:"base_price" db:"base_price_cents"`
	Category    string     `json:"category" db:"category"`
}
