package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/homeserve/marketplace-backend/internal/cache"
	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerFixture struct {
	svc    *ProviderService
	store  *fakeProviderStore
	audit  *fakeAuditStore
	events *recorder
	redis  *miniredis.Miniredis
}

func setupProviderTest(t *testing.T) *providerFixture {
	t.Helper()
	logger := nullLogger()
	bus, rec := newTestBus(logger)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := cache.NewRedisClient(config.RedisConfig{Address: mr.Addr(), PoolSize: 2})
	t.Cleanup(func() { client.Close() })
	c := cache.NewRedisCache(client, time.Minute)
	RegisterCacheInvalidation(bus, c, logger)

	pending := verifiedProvider(7, 70, models.NewMoneyFromFloat(300))
	pending.BackgroundVerified = models.VerificationPending
	store := newFakeProviderStore(verifiedProvider(5, 50, models.NewMoneyFromFloat(500)), pending)

	auditStore := &fakeAuditStore{}
	return &providerFixture{
		svc:    NewProviderService(store, c, NewAuditService(auditStore, logger, true), bus, logger),
		store:  store,
		audit:  auditStore,
		events: rec,
		redis:  mr,
	}
}

func TestVerifyProvider(t *testing.T) {
	f := setupProviderTest(t)
	ctx := context.Background()

	_, err := f.svc.VerifyProvider(ctx, customer, 7)
	isForbidden(t, err)

	_, err = f.svc.VerifyProvider(ctx, adminActor, 404)
	isNotFound(t, err)

	p, err := f.svc.VerifyProvider(ctx, adminActor, 7)
	require.NoError(t, err)
	assert.True(t, p.IsVerified())
	assert.Equal(t, []string{models.AuditActionProviderVerified}, f.audit.actions())
	assert.Equal(t, []string{events.EventProviderVerified}, f.events.types())

	_, err = f.svc.VerifyProvider(ctx, adminActor, 7)
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "verify", invalid.Event)
	assert.Len(t, f.audit.actions(), 1)
}

type brokenVerifyStore struct {
	*fakeProviderStore
	err error
}

func (b brokenVerifyStore) Verify(ctx context.Context, id int64) error { return b.err }

func TestVerifyProviderStoreFailure(t *testing.T) {
	f := setupProviderTest(t)
	dbErr := errors.New("deadlock detected")
	f.svc.providers = brokenVerifyStore{fakeProviderStore: f.store, err: dbErr}

	_, err := f.svc.VerifyProvider(context.Background(), adminActor, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "failed to verify provider")
	assert.Empty(t, f.audit.actions())
	assert.Empty(t, f.events.types())
}

func TestUnverifiedProviderVisibility(t *testing.T) {
	f := setupProviderTest(t)
	ctx := context.Background()

	_, err := f.svc.GetProvider(ctx, customer, 7)
	isNotFound(t, err)

	p, err := f.svc.GetProvider(ctx, Actor{UserID: 70, Role: models.RoleProvider}, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)

	_, err = f.svc.GetProvider(ctx, adminActor, 7)
	require.NoError(t, err)

	list, err := f.svc.ListProviders(ctx, customer, models.ProviderFilter{Unverified: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.ListProviders(ctx, adminActor, models.ProviderFilter{Unverified: true})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProviderCacheInvalidatedOnVerify(t *testing.T) {
	f := setupProviderTest(t)
	ctx := context.Background()

	_, err := f.svc.GetProvider(ctx, adminActor, 7)
	require.NoError(t, err)
	_, err = f.svc.GetProvider(ctx, adminActor, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.lookups)
	assert.True(t, f.redis.Exists(cache.ProviderKey(7)))

	_, err = f.svc.VerifyProvider(ctx, adminActor, 7)
	require.NoError(t, err)
	assert.False(t, f.redis.Exists(cache.ProviderKey(7)))

	// customers see it now
	p, err := f.svc.GetProvider(ctx, customer, 7)
	require.NoError(t, err)
	assert.True(t, p.IsVerified())
}

func TestListProvidersValidation(t *testing.T) {
	f := setupProviderTest(t)
	ctx := context.Background()

	_, err := f.svc.ListProviders(ctx, customer, models.ProviderFilter{SortBy: "random"})
	isValidation("sort_by")(t, err)

	_, err = f.svc.ListProviders(ctx, customer, models.ProviderFilter{Availability: "asleep"})
	isValidation("availability")(t, err)

	lo, hi := 900.0, 100.0
	_, err = f.svc.ListProviders(ctx, customer, models.ProviderFilter{MinRate: &lo, MaxRate: &hi})
	isValidation("min_rate")(t, err)
}

func TestUpdateAvailability(t *testing.T) {
	f := setupProviderTest(t)
	ctx := context.Background()

	p, err := f.svc.UpdateAvailability(ctx, providerA, models.AvailabilityBusy)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityBusy, p.AvailabilityStatus)
	assert.Equal(t, []string{events.EventProviderUpdated}, f.events.types())

	_, err = f.svc.UpdateAvailability(ctx, providerA, "gone")
	isValidation("availability_status")(t, err)

	_, err = f.svc.UpdateAvailability(ctx, customer, models.AvailabilityBusy)
	isForbidden(t, err)
}
