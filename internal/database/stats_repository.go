package database

import (
	"context"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// StatsRepository runs the aggregate queries behind dashboards
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// StatusCounts groups bookings by status for one customer, one provider, or
// the whole platform when both ids are nil
func (r *StatsRepository) StatusCounts(ctx context.Context, customerID, providerID *int64) ([]models.StatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(total_amount_cents), 0) AS amount_cents
		FROM bookings`
	var args []interface{}
	switch {
	case customerID != nil:
		query += ` WHERE customer_id = $1`
		args = append(args, *customerID)
	case providerID != nil:
		query += ` WHERE provider_id = $1`
		args = append(args, *providerID)
	}
	query += ` GROUP BY status`

	counts := []models.StatusCount{}
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	return counts, nil
}

// AdminStats returns platform totals. total_sales sums completed bookings;
// platform_revenue sums the stored commission of those bookings.
func (r *StatsRepository) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM provider_profiles) AS providers,
			(SELECT COUNT(*) FROM provider_profiles WHERE background_verified = 'pending') AS pending_providers,
			(SELECT COUNT(*) FROM bookings) AS bookings,
			(SELECT COUNT(*) FROM complaints WHERE status <> 'resolved') AS open_complaints,
			(SELECT COALESCE(SUM(total_amount_cents), 0) FROM bookings WHERE status = 'completed') AS total_sales_cents,
			(SELECT COALESCE(SUM(commission_amount_cents), 0) FROM bookings WHERE status = 'completed') AS platform_revenue_cents`

	var stats models.AdminStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get admin stats: %w", err)
	}
	return &stats, nil
}
