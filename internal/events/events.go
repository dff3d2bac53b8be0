package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	EventBookingCreated      = "booking_created"
	EventBookingTransitioned = "booking_transitioned"
	EventBookingEdited       = "booking_edited"
	EventComplaintFiled      = "complaint_filed"
	EventComplaintAction     = "complaint_action"
	EventProviderVerified    = "provider_verified"
	EventProviderUpdated     = "provider_updated"
	EventReviewCreated       = "review_created"
	EventUserDeleted         = "user_deleted"
)

// BookingEventPayload is the booking snapshot sent to subscribers
type BookingEventPayload struct {
	BookingID  int64  `json:"booking_id"`
	CustomerID int64  `json:"customer_id"`
	ProviderID int64  `json:"provider_id"`
	Event      string `json:"event,omitempty"`
	FromStatus string `json:"from_status,omitempty"`
	Status     string `json:"status"`
	ActorRole  string `json:"actor_role,omitempty"`
	ActorID    int64  `json:"actor_id,omitempty"`
	Version    int64  `json:"version"`
}

// ComplaintEventPayload is the complaint snapshot sent to subscribers
type ComplaintEventPayload struct {
	ComplaintID int64  `json:"complaint_id"`
	BookingID   int64  `json:"booking_id"`
	ProviderID  int64  `json:"provider_id,omitempty"`
	CustomerID  int64  `json:"customer_id,omitempty"`
	Action      string `json:"action"`
	Status      string `json:"status"`
}

// ProviderEventPayload identifies a provider whose public data changed
type ProviderEventPayload struct {
	ProviderID int64 `json:"provider_id"`
}

// Event represents a lightweight domain event
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for domain events. Publishing happens
// after the originating transaction committed.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *logrus.Logger
}

// NewEventBus constructs an empty bus
func NewEventBus(logger *logrus.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for several event types
func (b *EventBus) SubscribeAll(handler EventHandler, eventTypes ...string) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type. Handlers run synchronously;
// a failing handler is logged and does not stop the others.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.WithError(err).WithField("event", event.Type).Warn("Event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
