package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const reviewColumns = `r.id, r.booking_id, r.provider_id, r.customer_id, r.rating, r.comment, r.created_at`

// ReviewRepository handles review database operations
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// CreateReview inserts the review and recomputes the provider's average
// rating (one decimal) in the same transaction. ErrDuplicate means the
// booking already has a review.
func (r *ReviewRepository) CreateReview(ctx context.Context, rv *models.Review) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO reviews (booking_id, provider_id, customer_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		rv.BookingID, rv.ProviderID, rv.CustomerID, rv.Rating, rv.Comment,
	).Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE provider_profiles
		SET rating = (SELECT ROUND(AVG(rating)::numeric, 1)::float8 FROM reviews WHERE provider_id = $1),
		    updated_at = NOW()
		WHERE id = $1`, rv.ProviderID); err != nil {
		return fmt.Errorf("failed to update provider rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetReviewByBooking returns the review of a booking, or ErrNotFound
func (r *ReviewRepository) GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error) {
	var rv models.Review
	query := `SELECT ` + reviewColumns + ` FROM reviews r WHERE r.booking_id = $1`
	if err := r.db.GetContext(ctx, &rv, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &rv, nil
}

// ListByProvider returns a provider's reviews with reviewer names, newest first
func (r *ReviewRepository) ListByProvider(ctx context.Context, providerID int64) ([]models.ReviewWithCustomer, error) {
	reviews := []models.ReviewWithCustomer{}
	query := `
		SELECT ` + reviewColumns + `, u.name AS customer_name
		FROM reviews r JOIN users u ON u.id = r.customer_id
		WHERE r.provider_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	if err := r.db.SelectContext(ctx, &reviews, query, providerID); err != nil {
		return nil, fmt.Errorf("failed to list provider reviews: %w", err)
	}
	return reviews, nil
}

// ListByCustomer returns the reviews written by a customer, newest first
func (r *ReviewRepository) ListByCustomer(ctx context.Context, customerID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews r
		WHERE r.customer_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	if err := r.db.SelectContext(ctx, &reviews, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to list customer reviews: %w", err)
	}
	return reviews, nil
}
