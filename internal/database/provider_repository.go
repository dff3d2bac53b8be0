package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const providerColumns = `p.id, p.user_id, p.service_type, p.hourly_rate_cents, p.experience_years,
	p.location, p.address, p.bio, p.rating, p.total_bookings, p.earnings_cents, p.warning_count,
	p.availability_status, p.background_verified, p.created_at, p.updated_at,
	u.name, u.email, u.phone`

// ProviderRepository handles provider profile database operations
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetProvider retrieves a provider profile with its account details
func (r *ProviderRepository) GetProvider(ctx context.Context, id int64) (*models.ProviderWithUser, error) {
	var p models.ProviderWithUser
	query := `SELECT ` + providerColumns + `
		FROM provider_profiles p JOIN users u ON u.id = p.user_id
		WHERE p.id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}

// GetProviderByUserID retrieves the profile owned by a provider account
func (r *ProviderRepository) GetProviderByUserID(ctx context.Context, userID int64) (*models.ProviderWithUser, error) {
	var p models.ProviderWithUser
	query := `SELECT ` + providerColumns + `
		FROM provider_profiles p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1`
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get provider by user: %w", err)
	}
	return &p, nil
}

// ListProviders returns providers matching the filter. Unless
// f.Unverified is set only verified providers are returned.
func (r *ProviderRepository) ListProviders(ctx context.Context, f models.ProviderFilter) ([]models.ProviderWithUser, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if !f.Unverified {
		where = append(where, "p.background_verified = 'verified'")
	}
	if f.ServiceType != "" {
		add("p.service_type ILIKE $%d", f.ServiceType)
	}
	if f.Location != "" {
		add("p.location ILIKE $%d", "%"+f.Location+"%")
	}
	if f.MinRate != nil {
		add("p.hourly_rate_cents >= $%d", models.NewMoneyFromFloat(*f.MinRate))
	}
	if f.MaxRate != nil {
		add("p.hourly_rate_cents <= $%d", models.NewMoneyFromFloat(*f.MaxRate))
	}
	if f.MinRating != nil {
		add("p.rating >= $%d", *f.MinRating)
	}
	if f.Availability != "" {
		add("p.availability_status = $%d", string(f.Availability))
	}

	query := `SELECT ` + providerColumns + `
		FROM provider_profiles p JOIN users u ON u.id = p.user_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY " + providerOrder(f.SortBy)
	query += limitClause(f.Limit, f.Offset, &args)

	providers := []models.ProviderWithUser{}
	if err := r.db.SelectContext(ctx, &providers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

func providerOrder(sort models.ProviderSort) string {
	switch sort {
	case models.ProviderSortPriceLow:
		return "p.hourly_rate_cents ASC, p.id"
	case models.ProviderSortPriceHigh:
		return "p.hourly_rate_cents DESC, p.id"
	case models.ProviderSortExperience:
		return "p.experience_years DESC, p.id"
	default:
		return "p.rating DESC, p.id"
	}
}

// Verify flips background_verified from pending to verified.
// ErrStaleWrite means the provider was not pending.
func (r *ProviderRepository) Verify(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE provider_profiles
		SET background_verified = 'verified', updated_at = NOW()
		WHERE id = $1 AND background_verified = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("failed to verify provider: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// UpdateAvailability sets the provider's availability status
func (r *ProviderRepository) UpdateAvailability(ctx context.Context, id int64, status models.AvailabilityStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE provider_profiles SET availability_status = $1, updated_at = NOW()
		WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReconcileStats recomputes rating, earnings and booking counters from the
// source tables and returns how many profiles changed
func (r *ProviderRepository) ReconcileStats(ctx context.Context) (int64, error) {
	query := `
		WITH agg AS (
			SELECT p.id,
			       COALESCE((SELECT ROUND(AVG(rv.rating)::numeric, 1) FROM reviews rv WHERE rv.provider_id = p.id), 0)::float8 AS rating,
			       COALESCE((SELECT SUM(COALESCE(b.provider_amount_cents, 0)) FROM bookings b
			                 WHERE b.provider_id = p.id AND b.status = 'completed'), 0) AS earnings_cents,
			       (SELECT COUNT(*) FROM bookings b WHERE b.provider_id = p.id) AS total_bookings
			FROM provider_profiles p
		)
		UPDATE provider_profiles p
		SET rating = agg.rating, earnings_cents = agg.earnings_cents,
		    total_bookings = agg.total_bookings, updated_at = NOW()
		FROM agg
		WHERE p.id = agg.id
		  AND (p.rating <> agg.rating OR p.earnings_cents <> agg.earnings_cents
		       OR p.total_bookings <> agg.total_bookings)`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile provider stats: %w", err)
	}
	return result.RowsAffected()
}
