package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const complaintColumns = `id, booking_id, customer_id, subject, description, status,
	resolution, refunded_at, warning_count, version, created_at, updated_at`

// ComplaintTransition is a compare-and-set change of a complaint
type ComplaintTransition struct {
	ComplaintID     int64
	Event           models.ComplaintEvent
	From            []models.ComplaintStatus
	To              models.ComplaintStatus
	ExpectedVersion int64
	Resolution      *string
}

// RefundResult is what a committed refund produced
type RefundResult struct {
	Complaint   *models.Complaint
	Transaction *models.WalletTransaction
}

// ComplaintRepository handles complaint database operations
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

func complaintStatusArray(statuses []models.ComplaintStatus) interface{} {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

// CreateComplaint inserts a pending complaint
func (r *ComplaintRepository) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	query := `
		INSERT INTO complaints (booking_id, customer_id, subject, description, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING ` + complaintColumns

	err := r.db.QueryRowxContext(ctx, query, c.BookingID, c.CustomerID, c.Subject, c.Description).StructScan(c)
	if err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	return nil
}

// GetComplaint retrieves a complaint by ID
func (r *ComplaintRepository) GetComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	var c models.Complaint
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return &c, nil
}

// ListComplaints returns complaints joined with their booking, newest first.
// Nil filters match everything.
func (r *ComplaintRepository) ListComplaints(ctx context.Context, status *models.ComplaintStatus, customerID *int64) ([]models.ComplaintDetails, error) {
	var (
		where []string
		args  []interface{}
	)
	if status != nil {
		args = append(args, string(*status))
		where = append(where, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if customerID != nil {
		args = append(args, *customerID)
		where = append(where, fmt.Sprintf("c.customer_id = $%d", len(args)))
	}

	query := `
		SELECT c.id, c.booking_id, c.customer_id, c.subject, c.description, c.status,
		       c.resolution, c.refunded_at, c.warning_count, c.version, c.created_at, c.updated_at,
		       u.name AS customer_name, b.provider_id, b.service_name, b.total_amount_cents
		FROM complaints c
		JOIN bookings b ON b.id = c.booking_id
		JOIN users u ON u.id = c.customer_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY c.created_at DESC, c.id DESC"

	complaints := []models.ComplaintDetails{}
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	return complaints, nil
}

// ApplyTransition updates status (and resolution) with compare-and-set
func (r *ComplaintRepository) ApplyTransition(ctx context.Context, t *ComplaintTransition) (*models.Complaint, error) {
	query := `
		UPDATE complaints
		SET status = $1, resolution = COALESCE($2, resolution),
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4 AND status = ANY($5)
		RETURNING ` + complaintColumns

	var c models.Complaint
	err := r.db.QueryRowxContext(ctx, query,
		string(t.To), t.Resolution, t.ComplaintID, t.ExpectedVersion, complaintStatusArray(t.From),
	).StructScan(&c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleWrite
		}
		return nil, fmt.Errorf("failed to update complaint: %w", err)
	}
	return &c, nil
}

// Refund marks the complaint refunded, flags the booking and credits the
// customer's wallet in one transaction. A complaint refunds at most once and
// a booking is refunded at most once across all its complaints.
func (r *ComplaintRepository) Refund(ctx context.Context, t *ComplaintTransition) (*RefundResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var c models.Complaint
	err = tx.QueryRowxContext(ctx, `
		UPDATE complaints
		SET refunded_at = NOW(), version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2 AND status = ANY($3) AND refunded_at IS NULL
		RETURNING `+complaintColumns,
		t.ComplaintID, t.ExpectedVersion, complaintStatusArray(t.From),
	).StructScan(&c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleWrite
		}
		return nil, fmt.Errorf("failed to mark complaint refunded: %w", err)
	}

	var booking struct {
		CustomerID  int64        `db:"customer_id"`
		TotalAmount models.Money `db:"total_amount_cents"`
	}
	err = tx.GetContext(ctx, &booking, `
		UPDATE bookings SET refund_status = 'refunded', updated_at = NOW()
		WHERE id = $1 AND refund_status = 'none'
		RETURNING customer_id, total_amount_cents`, c.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyRefunded
		}
		return nil, fmt.Errorf("failed to mark booking refunded: %w", err)
	}

	txn := models.WalletTransaction{
		UserID:      booking.CustomerID,
		Amount:      booking.TotalAmount,
		Type:        models.TransactionCredit,
		Description: fmt.Sprintf("Refund for booking #%d", c.BookingID),
		ReferenceID: models.RefundReference(c.ID),
		Status:      "completed",
	}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO wallet_transactions (user_id, amount_cents, type, description, reference_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		txn.UserID, txn.Amount, string(txn.Type), txn.Description, txn.ReferenceID, txn.Status,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyRefunded
		}
		return nil, fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET wallet_balance_cents = wallet_balance_cents + $1, updated_at = NOW()
		WHERE id = $2`, txn.Amount, txn.UserID); err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &RefundResult{Complaint: &c, Transaction: &txn}, nil
}

// Warn increments the warning counters of the complaint and of the provider
// the complained-about booking belongs to
func (r *ComplaintRepository) Warn(ctx context.Context, t *ComplaintTransition) (*models.Complaint, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var c models.Complaint
	err = tx.QueryRowxContext(ctx, `
		UPDATE complaints
		SET warning_count = warning_count + 1, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2 AND status = ANY($3)
		RETURNING `+complaintColumns,
		t.ComplaintID, t.ExpectedVersion, complaintStatusArray(t.From),
	).StructScan(&c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleWrite
		}
		return nil, fmt.Errorf("failed to warn on complaint: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE provider_profiles SET warning_count = warning_count + 1, updated_at = NOW()
		WHERE id = (SELECT provider_id FROM bookings WHERE id = $1)`, c.BookingID); err != nil {
		return nil, fmt.Errorf("failed to warn provider: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &c, nil
}
