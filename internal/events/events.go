package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventUserSignedUp          = "user_signed_up"
	EventBookingCreated        = "booking_created"
	EventBookingStatusChanged  = "booking_status_changed"
	EventBookingDeleted        = "booking_deleted"
	EventInspectionPriceSet    = "inspection_price_set"
	EventTicketOpened          = "ticket_opened"
	EventChatMessageFromClient = "chat_message_from_client"
	EventContactReceived       = "contact_received"
	EventComplaintFiled        = "complaint_filed"
	EventPickupScheduled       = "pickup_scheduled"
)

// BookingEventPayload describes the booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID      int64   `json:"booking_id"`
	UserID         int64   `json:"user_id"`
	ServiceType    string  `json:"service_type"`
	Status         string  `json:"status"`
	PreviousStatus string  `json:"previous_status,omitempty"`
	BookingDate    string  `json:"booking_date"`
	BookingTime    string  `json:"booking_time"`
	Address        string  `json:"address"`
	TotalAmount    float64 `json:"total_amount"`
	ChangedBy      string  `json:"changed_by,omitempty"`
	ChangedByID    int64   `json:"changed_by_id,omitempty"`
}

// NoticePayload is the common shape of events that only need to reach admins.
type NoticePayload struct {
	Table   string `json:"table"`
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into dst.
func (e *Event) Decode(dst interface{}) error {
	return json.Unmarshal(e.Payload, dst)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(event *Event, err error)
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures. Without one, failures are
// dropped.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
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
