package services

import (
	"context"
	"sync"
	"time"

	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// fakeBookingStore mirrors the compare-and-set semantics of BookingRepository
type fakeBookingStore struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[int64]*models.Booking
	history  []models.BookingStatusEvent
	earnings map[int64]models.Money
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: map[int64]*models.Booking{}, earnings: map[int64]models.Money{}}
}

func (f *fakeBookingStore) put(b models.Booking) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == 0 {
		f.nextID++
		b.ID = f.nextID
	} else if b.ID > f.nextID {
		f.nextID = b.ID
	}
	if b.Version == 0 {
		b.Version = 1
	}
	if b.RefundStatus == "" {
		b.RefundStatus = models.RefundStatusNone
	}
	f.bookings[b.ID] = &b
	cp := b
	return &cp
}

// dayTaken reports whether providerID has an open booking other than exclude
// on date; a pending reschedule holds both its days. Callers hold f.mu.
func (f *fakeBookingStore) dayTaken(providerID int64, date string, exclude int64) bool {
	for _, other := range f.bookings {
		if other.ID == exclude || other.ProviderID != providerID {
			continue
		}
		switch other.Status {
		case models.BookingStatusPending, models.BookingStatusConfirmed:
			if other.BookingDate == date {
				return true
			}
		case models.BookingStatusRescheduleRequested:
			if other.BookingDate == date || (other.SuggestedDate.Valid && other.SuggestedDate.String == date) {
				return true
			}
		}
	}
	return false
}

func (f *fakeBookingStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dayTaken(b.ProviderID, b.BookingDate, 0) {
		return database.ErrSlotTaken
	}
	f.nextID++
	b.ID = f.nextID
	b.Version = 1
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.BookingDetails{}
	for id := int64(1); id <= f.nextID; id++ {
		b, ok := f.bookings[id]
		if !ok {
			continue
		}
		if filter.CustomerID != nil && b.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.ProviderID != nil && b.ProviderID != *filter.ProviderID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		out = append(out, models.BookingDetails{Booking: *b})
	}
	return out, nil
}

func (f *fakeBookingStore) ApplyTransition(ctx context.Context, t *database.BookingTransition) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t.ClaimDate != nil && f.dayTaken(t.ProviderID, *t.ClaimDate, t.BookingID) {
		return nil, database.ErrSlotTaken
	}
	b, ok := f.bookings[t.BookingID]
	if !ok || b.Version != t.ExpectedVersion || !containsStatus(t.From, b.Status) {
		return nil, database.ErrStaleWrite
	}
	next := *b
	next.Status = t.To
	if t.SuggestedDate != nil {
		next.SuggestedDate = models.NewNullString(t.SuggestedDate)
		next.SuggestedTime = models.NewNullString(t.SuggestedTime)
		next.PriorStatus = t.PriorStatus
	}
	if t.ApplySuggestion {
		next.BookingDate = next.SuggestedDate.String
		next.BookingTime = next.SuggestedTime.String
	}
	if t.ClearSuggestion {
		next.SuggestedDate = models.NullString{}
		next.SuggestedTime = models.NullString{}
		next.PriorStatus = nil
	}
	if t.ProviderAmount != nil {
		next.ProviderAmount = t.ProviderAmount
		next.CommissionAmount = t.CommissionAmount
		f.earnings[next.ProviderID] += *t.ProviderAmount
	}
	next.Version++
	next.UpdatedAt = time.Now()
	f.bookings[next.ID] = &next

	f.history = append(f.history, models.BookingStatusEvent{
		ID:         int64(len(f.history) + 1),
		BookingID:  next.ID,
		Event:      t.Event,
		FromStatus: t.Current,
		ToStatus:   t.To,
		ActorRole:  t.ActorRole,
		ActorID:    t.ActorID,
		CreatedAt:  next.UpdatedAt,
	})

	cp := next
	return &cp, nil
}

func (f *fakeBookingStore) UpdateDetails(ctx context.Context, u *database.BookingUpdate) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u.BookingDate != nil && f.dayTaken(u.ProviderID, *u.BookingDate, u.BookingID) {
		return nil, database.ErrSlotTaken
	}
	b, ok := f.bookings[u.BookingID]
	if !ok || b.Version != u.ExpectedVersion || !b.Status.IsEditable() {
		return nil, database.ErrStaleWrite
	}
	next := *b
	if u.BookingDate != nil {
		next.BookingDate = *u.BookingDate
	}
	if u.BookingTime != nil {
		next.BookingTime = *u.BookingTime
	}
	if u.DurationHours != nil {
		next.DurationHours = *u.DurationHours
	}
	if u.TotalAmount != nil {
		next.TotalAmount = *u.TotalAmount
	}
	if u.Address != nil {
		next.Address = *u.Address
	}
	if u.Notes != nil {
		next.Notes = models.NewNullString(u.Notes)
	}
	next.Version++
	f.bookings[next.ID] = &next
	cp := next
	return &cp, nil
}

func (f *fakeBookingStore) ListEvents(ctx context.Context, bookingID int64) ([]models.BookingStatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.BookingStatusEvent{}
	for _, e := range f.history {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeProviderStore keeps provider profiles in memory
type fakeProviderStore struct {
	mu        sync.Mutex
	providers map[int64]*models.ProviderWithUser
	lookups   int
}

func newFakeProviderStore(ps ...models.ProviderWithUser) *fakeProviderStore {
	f := &fakeProviderStore{providers: map[int64]*models.ProviderWithUser{}}
	for i := range ps {
		p := ps[i]
		f.providers[p.ID] = &p
	}
	return f
}

func (f *fakeProviderStore) GetProvider(ctx context.Context, id int64) (*models.ProviderWithUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	p, ok := f.providers[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProviderStore) GetProviderByUserID(ctx context.Context, userID int64) (*models.ProviderWithUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.providers {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeProviderStore) ListProviders(ctx context.Context, filter models.ProviderFilter) ([]models.ProviderWithUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ProviderWithUser{}
	for _, p := range f.providers {
		if !filter.Unverified && !p.IsVerified() {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProviderStore) Verify(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.providers[id]
	if !ok || p.IsVerified() {
		return database.ErrStaleWrite
	}
	p.BackgroundVerified = models.VerificationVerified
	return nil
}

func (f *fakeProviderStore) UpdateAvailability(ctx context.Context, id int64, status models.AvailabilityStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.providers[id]
	if !ok {
		return database.ErrNotFound
	}
	p.AvailabilityStatus = status
	return nil
}

// fakeAuditStore records audit rows
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
	details []map[string]interface{}
}

func (f *fakeAuditStore) Insert(ctx context.Context, entry *models.AuditLog, details map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	f.details = append(f.details, details)
	return nil
}

func (f *fakeAuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AuditLog(nil), f.entries...), nil
}

func (f *fakeAuditStore) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeAuditStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// recorder captures published events by type
type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) handle(e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestBus(logger *logrus.Logger) (*events.EventBus, *recorder) {
	bus := events.NewEventBus(logger)
	rec := &recorder{}
	bus.SubscribeAll(rec.handle,
		events.EventBookingCreated, events.EventBookingTransitioned, events.EventBookingEdited,
		events.EventComplaintFiled, events.EventComplaintAction, events.EventProviderVerified,
		events.EventProviderUpdated, events.EventReviewCreated, events.EventUserDeleted)
	return bus, rec
}

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

var (
	customer   = Actor{UserID: 1, Role: models.RoleCustomer}
	stranger   = Actor{UserID: 2, Role: models.RoleCustomer}
	providerA  = Actor{UserID: 50, Role: models.RoleProvider, ProviderID: 5}
	providerB  = Actor{UserID: 60, Role: models.RoleProvider, ProviderID: 6}
	adminActor = Actor{UserID: 99, Role: models.RoleAdmin}
)

func verifiedProvider(id, userID int64, rate models.Money) models.ProviderWithUser {
	return models.ProviderWithUser{
		ProviderProfile: models.ProviderProfile{
			ID:                 id,
			UserID:             userID,
			ServiceType:        "cook",
			HourlyRate:         rate,
			Location:           "Pune",
			AvailabilityStatus: models.AvailabilityAvailable,
			BackgroundVerified: models.VerificationVerified,
		},
		Name:  "Provider",
		Email: "provider@example.com",
	}
}
