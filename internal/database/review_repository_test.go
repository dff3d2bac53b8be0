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

func TestReviewRepository_CreateReview(t *testing.T) {
	ctx := context.Background()
	comment := "Great with the kids"

	newReview := func() *models.Review {
		return &models.Review{
			BookingID: 10, ProviderID: 5, CustomerID: 1, Rating: 5,
			Comment: models.NewNullString(&comment),
		}
	}

	t.Run("Success Recomputes Rating", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO reviews`).
			WithArgs(int64(10), int64(5), int64(1), 5, comment).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
		mock.ExpectExec(`SET rating = \(SELECT ROUND\(AVG\(rating\)::numeric, 1\)::float8 FROM reviews WHERE provider_id = \$1\)`).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rv := newReview()
		require.NoError(t, repo.CreateReview(ctx, rv))
		assert.Equal(t, int64(1), rv.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Second Review For Booking", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReviewRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO reviews`).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.CreateReview(ctx, newReview()), ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReviewRepository_ListByProvider(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM reviews r JOIN users u ON u.id = r.customer_id WHERE r.provider_id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "booking_id", "provider_id", "customer_id", "rating", "comment", "created_at", "customer_name",
		}).
			AddRow(2, 11, 5, 1, 4, nil, now, "Alice").
			AddRow(1, 10, 5, 1, 5, "Great", now, "Alice"))

	reviews, err := repo.ListByProvider(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.False(t, reviews[0].Comment.Valid)
	assert.Equal(t, "Great", reviews[1].Comment.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}
