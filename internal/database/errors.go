package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the addressed row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrStaleWrite is returned when a compare-and-set update matched no row:
	// the version moved or the row left the expected state
	ErrStaleWrite = errors.New("stale write")
	// ErrSlotTaken is returned when the provider already has an open booking that day
	ErrSlotTaken = errors.New("provider already booked on this date")
	// ErrProviderUnverified is returned when booking a provider that is not verified
	ErrProviderUnverified = errors.New("provider is not verified")
	// ErrAlreadyRefunded is returned when the booking was refunded before
	ErrAlreadyRefunded = errors.New("booking already refunded")
	// ErrDuplicate is returned on unique constraint violations
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation
// from either driver
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
