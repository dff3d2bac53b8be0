package services

import (
	"context"
	"time"

	"github.com/homeserve/marketplace-backend/internal/cache"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/sirupsen/logrus"
)

// RegisterCacheInvalidation subscribes c to every event that changes a
// cached provider profile or the admin stats
func RegisterCacheInvalidation(bus *events.EventBus, c cache.Cache, logger *logrus.Logger) {
	drop := func(keys ...string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return c.Delete(ctx, keys...)
	}

	bus.SubscribeAll(func(e *events.Event) error {
		var p events.BookingEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return drop(cache.ProviderKey(p.ProviderID), cache.AdminStatsKey)
	}, events.EventBookingCreated, events.EventBookingTransitioned, events.EventBookingEdited)

	bus.SubscribeAll(func(e *events.Event) error {
		var p events.ComplaintEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		keys := []string{cache.AdminStatsKey}
		if p.ProviderID != 0 {
			keys = append(keys, cache.ProviderKey(p.ProviderID))
		}
		return drop(keys...)
	}, events.EventComplaintFiled, events.EventComplaintAction)

	bus.SubscribeAll(func(e *events.Event) error {
		var p events.ProviderEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return drop(cache.ProviderKey(p.ProviderID), cache.AdminStatsKey)
	}, events.EventProviderVerified, events.EventProviderUpdated, events.EventReviewCreated)

	// user_deleted carries the provider profile id when the user was a provider
	bus.Subscribe(events.EventUserDeleted, func(e *events.Event) error {
		var p events.ProviderEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.ProviderID == 0 {
			return drop(cache.AdminStatsKey)
		}
		return drop(cache.ProviderKey(p.ProviderID), cache.AdminStatsKey)
	})

	logger.Debug("Cache invalidation subscribers registered")
}
