package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/cache"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// StatsStore runs dashboard aggregations
type StatsStore interface {
	StatusCounts(ctx context.Context, customerID, providerID *int64) ([]models.StatusCount, error)
	AdminStats(ctx context.Context) (*models.AdminStats, error)
}

// DashboardService builds the one summary every role's dashboard renders
type DashboardService struct {
	stats     StatsStore
	providers ProviderLookup
	cache     cache.Cache
	logger    *logrus.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(stats StatsStore, providers ProviderLookup, c cache.Cache, logger *logrus.Logger) *DashboardService {
	if c == nil {
		c = cache.Noop{}
	}
	return &DashboardService{stats: stats, providers: providers, cache: c, logger: logger}
}

// openStatuses are bookings whose money is not yet settled
var openStatuses = []models.BookingStatus{
	models.BookingStatusPending,
	models.BookingStatusConfirmed,
	models.BookingStatusRescheduleRequested,
}

// Dashboard returns the summary for actor's role
func (s *DashboardService) Dashboard(ctx context.Context, actor Actor) (*models.Dashboard, error) {
	d := &models.Dashboard{Role: actor.Role, StatusCounts: make(map[models.BookingStatus]int)}

	var (
		counts []models.StatusCount
		err    error
	)
	switch actor.Role {
	case models.RoleCustomer:
		counts, err = s.stats.StatusCounts(ctx, &actor.UserID, nil)
	case models.RoleProvider:
		p, perr := s.ownProvider(ctx, actor)
		if perr != nil {
			return nil, perr
		}
		d.Earnings = &p.Earnings
		d.Rating = &p.Rating
		counts, err = s.stats.StatusCounts(ctx, nil, &p.ID)
	case models.RoleAdmin:
		stats, serr := s.AdminStats(ctx)
		if serr != nil {
			return nil, serr
		}
		d.Stats = stats
		counts, err = s.stats.StatusCounts(ctx, nil, nil)
	default:
		return nil, &ForbiddenError{Message: "unknown role"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	var spent, pending models.Money
	for _, c := range counts {
		d.StatusCounts[c.Status] = c.Count
		d.TotalBookings += c.Count
		if c.Status == models.BookingStatusCompleted {
			spent += c.Amount
		}
		if containsStatus(openStatuses, c.Status) {
			pending += c.Amount
		}
	}

	switch actor.Role {
	case models.RoleCustomer:
		d.TotalSpent = &spent
		d.PendingAmount = &pending
	case models.RoleProvider:
		d.PendingAmount = &pending
	}
	return d, nil
}

// AdminStats returns the platform totals, served from cache when possible
func (s *DashboardService) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	var cached models.AdminStats
	hit, err := s.cache.GetJSON(ctx, cache.AdminStatsKey, &cached)
	if err != nil {
		s.logger.WithError(err).Warn("Admin stats cache read failed")
	}
	if hit {
		return &cached, nil
	}

	stats, err := s.stats.AdminStats(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, cache.AdminStatsKey, stats); err != nil {
		s.logger.WithError(err).Warn("Admin stats cache write failed")
	}
	return stats, nil
}

func (s *DashboardService) ownProvider(ctx context.Context, actor Actor) (*models.ProviderWithUser, error) {
	var (
		p   *models.ProviderWithUser
		err error
	)
	if actor.ProviderID != 0 {
		p, err = s.providers.GetProvider(ctx, actor.ProviderID)
	} else {
		p, err = s.providers.GetProviderByUserID(ctx, actor.UserID)
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "provider", ID: actor.UserID}
		}
		return nil, fmt.Errorf("failed to get provider profile: %w", err)
	}
	return p, nil
}
