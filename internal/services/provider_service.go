package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/homeserve/marketplace-backend/internal/cache"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ProviderStore persists provider profiles
type ProviderStore interface {
	ProviderLookup
	ListProviders(ctx context.Context, f models.ProviderFilter) ([]models.ProviderWithUser, error)
	Verify(ctx context.Context, id int64) error
	UpdateAvailability(ctx context.Context, id int64, status models.AvailabilityStatus) error
}

// ProviderService handles provider listings, verification and availability
type ProviderService struct {
	providers ProviderStore
	cache     cache.Cache
	audit     *AuditService
	bus       *events.EventBus
	logger    *logrus.Logger
}

// NewProviderService creates a new provider service
func NewProviderService(
	providers ProviderStore,
	c cache.Cache,
	audit *AuditService,
	bus *events.EventBus,
	logger *logrus.Logger,
) *ProviderService {
	if c == nil {
		c = cache.Noop{}
	}
	return &ProviderService{
		providers: providers,
		cache:     c,
		audit:     audit,
		bus:       bus,
		logger:    logger,
	}
}

// ListProviders returns verified providers matching f. Admins may include
// providers still pending verification.
func (s *ProviderService) ListProviders(ctx context.Context, actor Actor, f models.ProviderFilter) ([]models.ProviderWithUser, error) {
	if f.Unverified && !actor.is(models.RoleAdmin) {
		f.Unverified = false
	}
	if f.Availability != "" && !f.Availability.Valid() {
		return nil, validation("availability", "unknown availability %q", f.Availability)
	}
	switch f.SortBy {
	case "", models.ProviderSortRating, models.ProviderSortPriceLow, models.ProviderSortPriceHigh, models.ProviderSortExperience:
	default:
		return nil, validation("sort_by", "unknown sort %q", f.SortBy)
	}
	if f.MinRate != nil && f.MaxRate != nil && *f.MinRate > *f.MaxRate {
		return nil, validation("min_rate", "must not exceed max_rate")
	}

	list, err := s.providers.ListProviders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return list, nil
}

// GetProvider returns one provider. Unverified profiles are visible only to
// admins and to the provider themselves.
func (s *ProviderService) GetProvider(ctx context.Context, actor Actor, id int64) (*models.ProviderWithUser, error) {
	p, err := s.cachedProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsVerified() && !actor.is(models.RoleAdmin) && p.UserID != actor.UserID {
		return nil, &NotFoundError{Entity: "provider", ID: id}
	}
	return p, nil
}

// GetOwnProfile returns the caller's provider profile
func (s *ProviderService) GetOwnProfile(ctx context.Context, actor Actor) (*models.ProviderWithUser, error) {
	if !actor.is(models.RoleProvider) {
		return nil, &ForbiddenError{Message: "only providers have a provider profile"}
	}
	p, err := s.providers.GetProviderByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "provider", ID: actor.UserID}
		}
		return nil, fmt.Errorf("failed to get provider profile: %w", err)
	}
	return p, nil
}

// VerifyProvider moves a provider from pending to verified. The transition
// is one-way; verifying twice is an InvalidTransitionError.
func (s *ProviderService) VerifyProvider(ctx context.Context, actor Actor, id int64) (*models.ProviderWithUser, error) {
	if !actor.is(models.RoleAdmin) {
		return nil, &ForbiddenError{Message: "only admins can verify providers"}
	}

	p, err := s.providers.GetProvider(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "provider", ID: id}
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	alreadyVerified := &InvalidTransitionError{
		Entity: "provider", ID: id, Event: "verify",
		CurrentStatus: string(models.VerificationVerified), Reason: "provider is already verified",
	}
	if p.IsVerified() {
		return nil, alreadyVerified
	}

	if err := s.providers.Verify(ctx, id); err != nil {
		if errors.Is(err, database.ErrStaleWrite) {
			return nil, alreadyVerified
		}
		return nil, fmt.Errorf("failed to verify provider: %w", err)
	}
	p.BackgroundVerified = models.VerificationVerified

	s.logger.WithFields(logrus.Fields{
		"provider_id": id,
		"admin_id":    actor.UserID,
	}).Info("Provider verified")

	s.audit.LogAdminAction(ctx, actor, models.AuditActionProviderVerified, "provider", id, nil)
	s.publish(events.EventProviderVerified, id)
	return p, nil
}

// UpdateAvailability sets the calling provider's availability
func (s *ProviderService) UpdateAvailability(ctx context.Context, actor Actor, status models.AvailabilityStatus) (*models.ProviderWithUser, error) {
	if !status.Valid() {
		return nil, validation("availability_status", "must be one of available, busy, unavailable")
	}
	p, err := s.GetOwnProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	if err := s.providers.UpdateAvailability(ctx, p.ID, status); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "provider", ID: p.ID}
		}
		return nil, err
	}
	p.AvailabilityStatus = status

	s.publish(events.EventProviderUpdated, p.ID)
	return p, nil
}

func (s *ProviderService) cachedProvider(ctx context.Context, id int64) (*models.ProviderWithUser, error) {
	var p models.ProviderWithUser
	hit, err := s.cache.GetJSON(ctx, cache.ProviderKey(id), &p)
	if err != nil {
		s.logger.WithError(err).WithField("provider_id", id).Warn("Provider cache read failed")
	}
	if hit {
		return &p, nil
	}

	fresh, err := s.providers.GetProvider(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "provider", ID: id}
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	if err := s.cache.SetJSON(ctx, cache.ProviderKey(id), fresh); err != nil {
		s.logger.WithError(err).WithField("provider_id", id).Warn("Provider cache write failed")
	}
	return fresh, nil
}

func (s *ProviderService) publish(eventType string, providerID int64) {
	if err := s.bus.PublishJSON(eventType, events.ProviderEventPayload{ProviderID: providerID}); err != nil {
		s.logger.WithError(err).WithField("provider_id", providerID).Warn("Failed to publish provider event")
	}
}
