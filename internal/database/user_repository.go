package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, name, email, password_hash, phone, role, wallet_balance_cents,
	last_login_at, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func insertUser(ctx context.Context, q sqlx.QueryerContext, u *models.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, phone, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	err := q.QueryRowxContext(ctx, query, u.Name, u.Email, u.PasswordHash, u.Phone, string(u.Role)).StructScan(u)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateUser inserts a new account. ErrDuplicate means the email is taken.
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	return insertUser(ctx, r.db, u)
}

// CreateProvider inserts the account and its pending provider profile together
func (r *UserRepository) CreateProvider(ctx context.Context, u *models.User, p *models.ProviderProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}

	p.UserID = u.ID
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO provider_profiles (user_id, service_type, hourly_rate_cents, experience_years, location, address, bio)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, rating, total_bookings, earnings_cents, warning_count,
		          availability_status, background_verified, created_at, updated_at`,
		p.UserID, p.ServiceType, p.HourlyRate, p.ExperienceYears, p.Location, p.Address, p.Bio,
	).Scan(&p.ID, &p.Rating, &p.TotalBookings, &p.Earnings, &p.WarningCount,
		&p.AvailabilityStatus, &p.BackgroundVerified, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create provider profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// ListUsers returns users, optionally filtered by role, newest first
func (r *UserRepository) ListUsers(ctx context.Context, role *models.UserRole) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users`
	args := []interface{}{}
	if role != nil {
		query += ` WHERE role = $1`
		args = append(args, string(*role))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateProfile writes name, email and phone of u and reloads the row.
// ErrDuplicate means the email belongs to another account.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users SET name = $2, email = $3, phone = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	err := r.db.QueryRowxContext(ctx, query, u.ID, u.Name, u.Email, u.Phone).StructScan(u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// DeleteUser removes the account and everything that hangs off it. Rows that
// reference the user through bookings of its provider profile go first so the
// whole removal commits or none of it does.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		what  string
		query string
	}{
		{"reviews", `DELETE FROM reviews WHERE customer_id = $1
			OR provider_id IN (SELECT id FROM provider_profiles WHERE user_id = $1)`},
		{"complaints", `DELETE FROM complaints WHERE customer_id = $1
			OR booking_id IN (SELECT b.id FROM bookings b JOIN provider_profiles p ON p.id = b.provider_id WHERE p.user_id = $1)`},
		{"bookings", `DELETE FROM bookings WHERE customer_id = $1
			OR provider_id IN (SELECT id FROM provider_profiles WHERE user_id = $1)`},
		{"provider profile", `DELETE FROM provider_profiles WHERE user_id = $1`},
		{"wallet transactions", `DELETE FROM wallet_transactions WHERE user_id = $1`},
		{"refresh tokens", `DELETE FROM refresh_tokens WHERE user_id = $1`},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", s.what, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
