package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const inquiryColumns = `id, user_id, name, email, phone, subject, message, status, created_at, updated_at`

// InquiryRepository handles contact-form messages
type InquiryRepository struct {
	db *sqlx.DB
}

// NewInquiryRepository creates a new inquiry repository
func NewInquiryRepository(db *sqlx.DB) *InquiryRepository {
	return &InquiryRepository{db: db}
}

// CreateInquiry stores a new message with status new
func (r *InquiryRepository) CreateInquiry(ctx context.Context, q *models.Inquiry) error {
	query := `
		INSERT INTO inquiries (user_id, name, email, phone, subject, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + inquiryColumns

	err := r.db.QueryRowxContext(ctx, query, q.UserID, q.Name, q.Email, q.Phone, q.Subject, q.Message).StructScan(q)
	if err != nil {
		return fmt.Errorf("failed to create inquiry: %w", err)
	}
	return nil
}

// ListInquiries returns inquiries, optionally by status, newest first
func (r *InquiryRepository) ListInquiries(ctx context.Context, status *models.InquiryStatus, limit, offset int) ([]models.Inquiry, error) {
	inquiries := []models.Inquiry{}
	query := `SELECT ` + inquiryColumns + ` FROM inquiries`
	args := []interface{}{}
	if status != nil {
		args = append(args, string(*status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	query += limitClause(limit, offset, &args)

	if err := r.db.SelectContext(ctx, &inquiries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	return inquiries, nil
}

// GetInquiry retrieves an inquiry by ID
func (r *InquiryRepository) GetInquiry(ctx context.Context, id int64) (*models.Inquiry, error) {
	var q models.Inquiry
	if err := r.db.GetContext(ctx, &q, `SELECT `+inquiryColumns+` FROM inquiries WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get inquiry: %w", err)
	}
	return &q, nil
}

// UpdateStatus moves an inquiry from one of from to status. ErrStaleWrite
// means it is no longer in from.
func (r *InquiryRepository) UpdateStatus(ctx context.Context, id int64, from []models.InquiryStatus, status models.InquiryStatus) (*models.Inquiry, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	var q models.Inquiry
	query := `
		UPDATE inquiries SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + inquiryColumns
	if err := r.db.QueryRowxContext(ctx, query, id, string(status), pq.Array(allowed)).StructScan(&q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleWrite
		}
		return nil, fmt.Errorf("failed to update inquiry status: %w", err)
	}
	return &q, nil
}
