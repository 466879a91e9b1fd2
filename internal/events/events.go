package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketbook/internal/model"
)

// Event types published by the mirror backend.
const (
	BookingConfirmed = "booking.confirmed"
	BookingPending   = "booking.pending"
	BookingStatus    = "booking.status_changed"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// CheckInPayload describes a committed check-in.
type CheckInPayload struct {
	MarketID    string          `json:"marketId"`
	MarketName  string          `json:"marketName"`
	OwnerChatID int64           `json:"ownerChatId,omitempty"`
	OrderID     string          `json:"orderId"`
	Bookings    []model.Booking `json:"bookings"`
}

// NewCheckInEvent builds a confirmed or pending event for a check-in.
func NewCheckInEvent(p CheckInPayload, pending bool) (Event, error) {
	typ := BookingConfirmed
	if pending {
		typ = BookingPending
	}
	return newEvent(typ, p)
}

// StatusPayload describes an owner decision on one booking.
type StatusPayload struct {
	MarketID    string `json:"marketId"`
	OwnerChatID int64  `json:"ownerChatId,omitempty"`
	BookingID   string `json:"bookingId"`
	Status      string `json:"status"`
}

// NewStatusEvent builds a status change event.
func NewStatusEvent(p StatusPayload) (Event, error) {
	return newEvent(BookingStatus, p)
}

func newEvent(typ string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{ID: uuid.NewString(), Type: typ, Payload: data, CreatedAt: time.Now()}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish runs the subscribers of the event type synchronously and joins their errors.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
