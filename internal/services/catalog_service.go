package services

import (
	"context"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/models"
)

// CatalogService serves the service catalog and wallet history
type CatalogService struct {
	catalog CatalogStore
	users   AccountStore
}

// NewCatalogService creates a new catalog service
func NewCatalogService(catalog CatalogStore, users AccountStore) *CatalogService {
	return &CatalogService{catalog: catalog, users: users}
}

// ListServices returns the bookable service categories
func (s *CatalogService) ListServices(ctx context.Context) ([]models.Service, error) {
	list, err := s.catalog.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return list, nil
}

// Wallet is a user's balance and its transaction history
type Wallet struct {
	Balance      models.Money               `json:"balance"`
	Transactions []models.WalletTransaction `json:"transactions"`
}

// Wallet returns the actor's wallet
func (s *CatalogService) Wallet(ctx context.Context, actor Actor) (*Wallet, error) {
	u, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, &NotFoundError{Entity: "user", ID: actor.UserID}
	}
	txns, err := s.catalog.ListTransactions(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return &Wallet{Balance: u.WalletBalance, Transactions: txns}, nil
}
