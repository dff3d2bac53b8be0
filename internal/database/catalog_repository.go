package database

import (
	"context"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// CatalogRepository reads the service catalog and wallet ledger
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListServices returns the catalog ordered by category then name
func (r *CatalogRepository) ListServices(ctx context.Context) ([]models.Service, error) {
	services := []models.Service{}
	query := `
		SELECT id, name, description, base_price_cents, category
		FROM services
		ORDER BY category, name`
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// ListTransactions returns a user's wallet movements, newest first
func (r *CatalogRepository) ListTransactions(ctx context.Context, userID int64) ([]models.WalletTransaction, error) {
	txns := []models.WalletTransaction{}
	query := `
		SELECT id, user_id, amount_cents, type, description, reference_id, status, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &txns, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txns, nil
}
