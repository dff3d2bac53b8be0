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

// bookingColumns selects a booking row with DATE/TIME columns rendered as text
func bookingColumns(alias string) string {
	p := ""
	if alias != "" {
		p = alias + "."
	}
	return fmt.Sprintf(`%[1]sid, %[1]scustomer_id, %[1]sprovider_id, %[1]sservice_name,
		to_char(%[1]sbooking_date, 'YYYY-MM-DD') AS booking_date,
		to_char(%[1]sbooking_time, 'HH24:MI') AS booking_time,
		%[1]sduration_hours, %[1]saddress, %[1]snotes, %[1]sstatus,
		%[1]stotal_amount_cents, %[1]sprovider_amount_cents, %[1]scommission_amount_cents,
		to_char(%[1]ssuggested_date, 'YYYY-MM-DD') AS suggested_date,
		to_char(%[1]ssuggested_time, 'HH24:MI') AS suggested_time,
		%[1]sprior_status, %[1]srefund_status, %[1]sversion, %[1]screated_at, %[1]supdated_at`, p)
}

// BookingTransition is a compare-and-set status change plus its side effects.
// It applies only when the row still has ExpectedVersion and a status in From.
type BookingTransition struct {
	BookingID       int64
	Event           models.BookingEvent
	From            []models.BookingStatus
	Current         models.BookingStatus // status observed at ExpectedVersion
	To              models.BookingStatus
	ExpectedVersion int64
	ActorRole       models.UserRole
	ActorID         int64

	// propose_reschedule
	SuggestedDate *string
	SuggestedTime *string
	PriorStatus   *models.BookingStatus

	// ClaimDate, when set, must be free of other open bookings of ProviderID.
	// Set by propose_reschedule and accept_reschedule.
	ProviderID int64
	ClaimDate  *string

	// accept_reschedule copies the suggestion onto booking_date/time
	ApplySuggestion bool
	// accept/decline_reschedule clear the negotiation columns
	ClearSuggestion bool

	// complete stores the split and credits provider earnings
	ProviderAmount   *models.Money
	CommissionAmount *models.Money
}

// BookingUpdate is a compare-and-set edit of booking details.
// Nil fields are left unchanged.
type BookingUpdate struct {
	BookingID       int64
	ProviderID      int64
	ExpectedVersion int64
	BookingDate     *string
	BookingTime     *string
	DurationHours   *int
	TotalAmount     *models.Money
	Address         *string
	Notes           *string
}

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func statusArray(statuses []models.BookingStatus) interface{} {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

// lockProvider takes the provider row lock that serializes day claims
func lockProvider(ctx context.Context, tx *sqlx.Tx, providerID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM provider_profiles WHERE id = $1 FOR UPDATE`, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock provider: %w", err)
	}
	return nil
}

// claimProviderDay returns ErrSlotTaken when the provider already has an open
// booking on date other than exclude. A booking awaiting a reschedule answer
// holds both its current and its suggested day. Callers hold the provider lock.
func claimProviderDay(ctx context.Context, tx *sqlx.Tx, providerID int64, date string, exclude int64) error {
	var taken bool
	err := tx.GetContext(ctx, &taken, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE provider_id = $1 AND id <> $3
			  AND (
				(booking_date = $2::date AND status IN ('pending', 'confirmed', 'reschedule_requested'))
				OR (suggested_date = $2::date AND status = 'reschedule_requested')
			  )
		)`, providerID, date, exclude)
	if err != nil {
		return fmt.Errorf("failed to check provider availability: %w", err)
	}
	if taken {
		return ErrSlotTaken
	}
	return nil
}

// CreateBooking inserts a pending booking. The provider row is locked so the
// one-open-booking-per-day rule holds under concurrent requests.
func (r *BookingRepository) CreateBooking(ctx context.Context, b *models.Booking) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var verification models.VerificationStatus
	err = tx.GetContext(ctx, &verification,
		`SELECT background_verified FROM provider_profiles WHERE id = $1 FOR UPDATE`, b.ProviderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock provider: %w", err)
	}
	if verification != models.VerificationVerified {
		return ErrProviderUnverified
	}

	if err := claimProviderDay(ctx, tx, b.ProviderID, b.BookingDate, 0); err != nil {
		return err
	}

	query := `
		INSERT INTO bookings (
			customer_id, provider_id, service_name, booking_date, booking_time,
			duration_hours, address, notes, status, total_amount_cents
		) VALUES ($1, $2, $3, $4::date, $5::time, $6, $7, $8, 'pending', $9)
		RETURNING ` + bookingColumns("")

	err = tx.QueryRowxContext(ctx, query,
		b.CustomerID, b.ProviderID, b.ServiceName, b.BookingDate, b.BookingTime,
		b.DurationHours, b.Address, b.Notes, b.TotalAmount,
	).StructScan(b)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE provider_profiles SET total_bookings = total_bookings + 1, updated_at = NOW() WHERE id = $1`,
		b.ProviderID); err != nil {
		return fmt.Errorf("failed to update provider booking count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBooking retrieves a booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	query := `SELECT ` + bookingColumns("") + ` FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListBookings returns bookings with party names, newest first
func (r *BookingRepository) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.BookingDetails, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		where = append(where, fmt.Sprintf("b.customer_id = $%d", len(args)))
	}
	if f.ProviderID != nil {
		args = append(args, *f.ProviderID)
		where = append(where, fmt.Sprintf("b.provider_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("b.status = $%d", len(args)))
	}

	query := `
		SELECT ` + bookingColumns("b") + `,
		       cu.name AS customer_name, pu.name AS provider_name
		FROM bookings b
		JOIN users cu ON cu.id = b.customer_id
		JOIN provider_profiles p ON p.id = b.provider_id
		JOIN users pu ON pu.id = p.user_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY b.created_at DESC, b.id DESC"
	query += limitClause(f.Limit, f.Offset, &args)

	bookings := []models.BookingDetails{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ApplyTransition performs the compare-and-set transition, records the
// history row and applies earnings in one transaction. ErrStaleWrite means
// the booking moved since it was read.
func (r *BookingRepository) ApplyTransition(ctx context.Context, t *BookingTransition) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if t.ClaimDate != nil {
		if err := lockProvider(ctx, tx, t.ProviderID); err != nil {
			return nil, err
		}
		if err := claimProviderDay(ctx, tx, t.ProviderID, *t.ClaimDate, t.BookingID); err != nil {
			return nil, err
		}
	}

	sets := []string{"status = $1", "version = version + 1", "updated_at = NOW()"}
	args := []interface{}{string(t.To), t.BookingID, t.ExpectedVersion, statusArray(t.From)}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if t.ApplySuggestion {
		sets = append(sets, "booking_date = suggested_date", "booking_time = suggested_time")
	}
	if t.ClearSuggestion {
		sets = append(sets, "suggested_date = NULL", "suggested_time = NULL", "prior_status = NULL")
	}
	if t.SuggestedDate != nil && t.SuggestedTime != nil && t.PriorStatus != nil {
		sets = append(sets,
			"suggested_date = "+next(*t.SuggestedDate)+"::date",
			"suggested_time = "+next(*t.SuggestedTime)+"::time",
			"prior_status = "+next(string(*t.PriorStatus)))
	}
	if t.ProviderAmount != nil && t.CommissionAmount != nil {
		sets = append(sets,
			"provider_amount_cents = "+next(*t.ProviderAmount),
			"commission_amount_cents = "+next(*t.CommissionAmount))
	}

	query := `
		UPDATE bookings SET ` + strings.Join(sets, ", ") + `
		WHERE id = $2 AND version = $3 AND status = ANY($4)
		RETURNING ` + bookingColumns("")

	var b models.Booking
	if err := tx.QueryRowxContext(ctx, query, args...).StructScan(&b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleWrite
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO booking_status_events (booking_id, event, from_status, to_status, actor_role, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, string(t.Event), string(t.Current), string(b.Status), string(t.ActorRole), t.ActorID); err != nil {
		return nil, fmt.Errorf("failed to record booking event: %w", err)
	}

	if t.ProviderAmount != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE provider_profiles SET earnings_cents = earnings_cents + $1, updated_at = NOW() WHERE id = $2`,
			*t.ProviderAmount, b.ProviderID); err != nil {
			return nil, fmt.Errorf("failed to credit provider earnings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &b, nil
}

// UpdateDetails applies an edit while the booking is still pending or
// confirmed. Moving the booking to another day claims that day for the
// provider first.
func (r *BookingRepository) UpdateDetails(ctx context.Context, u *BookingUpdate) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if u.BookingDate != nil {
		if err := lockProvider(ctx, tx, u.ProviderID); err != nil {
			return nil, err
		}
		if err := claimProviderDay(ctx, tx, u.ProviderID, *u.BookingDate, u.BookingID); err != nil {
			return nil, err
		}
	}

	sets := []string{"version = version + 1", "updated_at = NOW()"}
	args := []interface{}{u.BookingID, u.ExpectedVersion}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if u.BookingDate != nil {
		sets = append(sets, "booking_date = "+next(*u.BookingDate)+"::date")
	}
	if u.BookingTime != nil {
		sets = append(sets, "booking_time = "+next(*u.BookingTime)+"::time")
	}
	if u.DurationHours != nil {
		sets = append(sets, "duration_hours = "+next(*u.DurationHours))
	}
	if u.TotalAmount != nil {
		sets = append(sets, "total_amount_cents = "+next(*u.TotalAmount))
	}
	if u.Address != nil {
		sets = append(sets, "address = "+next(*u.Address))
	}
	if u.Notes != nil {
		sets = append(sets, "notes = "+next(models.NewNullString(u.Notes)))
	}

	query := `
		UPDATE bookings SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1 AND version = $2 AND status IN ('pending', 'confirmed')
		RETURNING ` + bookingColumns("")

	var b models.Booking
	if err := tx.QueryRowxContext(ctx, query, args...).StructScan(&b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleWrite
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &b, nil
}

// ListEvents returns the transition history of a booking in commit order
func (r *BookingRepository) ListEvents(ctx context.Context, bookingID int64) ([]models.BookingStatusEvent, error) {
	events := []models.BookingStatusEvent{}
	query := `
		SELECT id, booking_id, event, from_status, to_status, actor_role, actor_id, created_at
		FROM booking_status_events
		WHERE booking_id = $1
		ORDER BY id`
	if err := r.db.SelectContext(ctx, &events, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list booking events: %w", err)
	}
	return events, nil
}

// ListForExport returns every booking scheduled within [from, to]
func (r *BookingRepository) ListForExport(ctx context.Context, from, to string) ([]models.BookingDetails, error) {
	query := `
		SELECT ` + bookingColumns("b") + `,
		       cu.name AS customer_name, pu.name AS provider_name
		FROM bookings b
		JOIN users cu ON cu.id = b.customer_id
		JOIN provider_profiles p ON p.id = b.provider_id
		JOIN users pu ON pu.id = p.user_id
		WHERE b.booking_date BETWEEN $1::date AND $2::date
		ORDER BY b.booking_date, b.booking_time, b.id`

	bookings := []models.BookingDetails{}
	if err := r.db.SelectContext(ctx, &bookings, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to list bookings for export: %w", err)
	}
	return bookings, nil
}

func limitClause(limit, offset int, args *[]interface{}) string {
	if limit <= 0 {
		return ""
	}
	*args = append(*args, limit, offset)
	return fmt.Sprintf("\n\t\tLIMIT $%d OFFSET $%d", len(*args)-1, len(*args))
}
