package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var complaintCols = []string{
	"id", "booking_id", "customer_id", "subject", "description", "status",
	"resolution", "refunded_at", "warning_count", "version", "created_at", "updated_at",
}

func complaintRows(status string, refundedAt interface{}, warnings int, version int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(complaintCols).AddRow(
		7, 10, 1, "Late", "Provider arrived late", status,
		nil, refundedAt, warnings, version, now, now,
	)
}

func refundTransition() *ComplaintTransition {
	return &ComplaintTransition{
		ComplaintID: 7, Event: models.ComplaintEventRefund,
		From:            []models.ComplaintStatus{models.ComplaintStatusPending, models.ComplaintStatusInvestigating},
		To:              models.ComplaintStatusInvestigating,
		ExpectedVersion: 2,
	}
}

func TestComplaintRepository_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewComplaintRepository(db)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE complaints SET refunded_at = NOW\(\)(.+)refunded_at IS NULL`).
			WithArgs(int64(7), int64(2), sqlmock.AnyArg()).
			WillReturnRows(complaintRows("investigating", now, 0, 3))
		mock.ExpectQuery(`UPDATE bookings SET refund_status = 'refunded'`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"customer_id", "total_amount_cents"}).AddRow(1, 100000))
		mock.ExpectQuery(`INSERT INTO wallet_transactions`).
			WithArgs(int64(1), models.Money(100000), "credit", "Refund for booking #10", "refund-complaint-7", "completed").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, now))
		mock.ExpectExec(`UPDATE users SET wallet_balance_cents = wallet_balance_cents \+ \$1`).
			WithArgs(models.Money(100000), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := repo.Refund(ctx, refundTransition())
		require.NoError(t, err)
		assert.True(t, res.Complaint.IsRefunded())
		assert.Equal(t, models.ComplaintStatusInvestigating, res.Complaint.Status)
		assert.Equal(t, models.Money(100000), res.Transaction.Amount)
		assert.Equal(t, "refund-complaint-7", res.Transaction.ReferenceID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Complaint Already Refunded Or Stale", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewComplaintRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE complaints SET refunded_at`).
			WillReturnRows(sqlmock.NewRows(complaintCols))
		mock.ExpectRollback()

		_, err := repo.Refund(ctx, refundTransition())
		assert.ErrorIs(t, err, ErrStaleWrite)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Booking Refunded Through Another Complaint", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewComplaintRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE complaints SET refunded_at`).
			WillReturnRows(complaintRows("pending", time.Now(), 0, 3))
		mock.ExpectQuery(`UPDATE bookings SET refund_status`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"customer_id", "total_amount_cents"}))
		mock.ExpectRollback()

		_, err := repo.Refund(ctx, refundTransition())
		assert.ErrorIs(t, err, ErrAlreadyRefunded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Wallet Reference", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewComplaintRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE complaints SET refunded_at`).
			WillReturnRows(complaintRows("pending", time.Now(), 0, 3))
		mock.ExpectQuery(`UPDATE bookings SET refund_status`).
			WillReturnRows(sqlmock.NewRows([]string{"customer_id", "total_amount_cents"}).AddRow(1, 100000))
		mock.ExpectQuery(`INSERT INTO wallet_transactions`).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := repo.Refund(ctx, refundTransition())
		assert.ErrorIs(t, err, ErrAlreadyRefunded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestComplaintRepository_Warn(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE complaints SET warning_count = warning_count \+ 1`).
		WithArgs(int64(7), int64(1), sqlmock.AnyArg()).
		WillReturnRows(complaintRows("pending", nil, 1, 2))
	mock.ExpectExec(`UPDATE provider_profiles SET warning_count = warning_count \+ 1`).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := repo.Warn(context.Background(), &ComplaintTransition{
		ComplaintID: 7, Event: models.ComplaintEventWarn,
		From:            []models.ComplaintStatus{models.ComplaintStatusPending, models.ComplaintStatusInvestigating},
		To:              models.ComplaintStatusPending,
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.WarningCount)
	assert.Equal(t, models.ComplaintStatusPending, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepository_ApplyTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("Resolve Persists Text", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewComplaintRepository(db)
		text := "Refunded and provider warned"
		now := time.Now()

		mock.ExpectQuery(`UPDATE complaints SET status = \$1, resolution = COALESCE\(\$2, resolution\)`).
			WithArgs("resolved", text, int64(7), int64(4), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(complaintCols).AddRow(
				7, 10, 1, "Late", "Provider arrived late", "resolved",
				text, nil, 0, 5, now, now,
			))

		c, err := repo.ApplyTransition(ctx, &ComplaintTransition{
			ComplaintID: 7, Event: models.ComplaintEventResolve,
			From:            []models.ComplaintStatus{models.ComplaintStatusPending, models.ComplaintStatusInvestigating},
			To:              models.ComplaintStatusResolved,
			ExpectedVersion: 4, Resolution: &text,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ComplaintStatusResolved, c.Status)
		assert.Equal(t, text, c.Resolution.String)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Stale", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewComplaintRepository(db)

		mock.ExpectQuery(`UPDATE complaints SET status`).
			WillReturnRows(sqlmock.NewRows(complaintCols))

		_, err := repo.ApplyTransition(ctx, &ComplaintTransition{
			ComplaintID: 7, Event: models.ComplaintEventInvestigate,
			From:            []models.ComplaintStatus{models.ComplaintStatusPending},
			To:              models.ComplaintStatusInvestigating,
			ExpectedVersion: 1,
		})
		assert.ErrorIs(t, err, ErrStaleWrite)
	})
}
