package realtime

import (
	"sync"
	"time"

	"sparkclean/internal/metrics"
	"sparkclean/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Subscription receives the changes of one table matching its filter.
type Subscription struct {
	ID     string
	Table  string
	Filter Filter

	events map[models.ChangeType]bool
	ch     chan models.Change
	closed bool
}

// Changes is closed when the subscription ends, either by Unsubscribe or
// because the subscriber fell behind.
func (s *Subscription) Changes() <-chan models.Change { return s.ch }

func (s *Subscription) matches(ch models.Change) bool {
	if ch.Table != s.Table {
		return false
	}
	if len(s.events) > 0 && !s.events[ch.Type] {
		return false
	}
	return s.Filter.Match(ch)
}

// Hub fans row changes out to subscribers. Publishers never block: a
// subscriber whose buffer is full is dropped.
type Hub struct {
	mu         sync.Mutex
	subs       map[string]*Subscription
	seq        int64
	bufferSize int
	origin     string
	onPublish  []func(models.Change)
	logger     *zerolog.Logger
}

func NewHub(bufferSize int, logger *zerolog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = models.RealtimeBufferSize
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "realtime").Logger()
	return &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
		origin:     uuid.NewString(),
		logger:     &l,
	}
}

// Origin identifies this hub instance on a shared relay.
func (h *Hub) Origin() string { return h.origin }

// OnPublish registers a callback for locally published changes. Injected
// changes are not passed to it.
func (h *Hub) OnPublish(fn func(models.Change)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPublish = append(h.onPublish, fn)
}

func (h *Hub) Subscribe(table string, filter Filter, events ...models.ChangeType) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Table:  table,
		Filter: filter,
		ch:     make(chan models.Change, h.bufferSize),
	}
	if len(events) > 0 {
		sub.events = make(map[models.ChangeType]bool, len(events))
		for _, e := range events {
			sub.events[e] = true
		}
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	metrics.SetRealtimeSubscribers(n)
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	h.remove(sub)
	n := len(h.subs)
	h.mu.Unlock()
	metrics.SetRealtimeSubscribers(n)
}

// remove must be called with mu held.
func (h *Hub) remove(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(h.subs, sub.ID)
	close(sub.ch)
}

// Publish stamps the change with the next sequence number and this hub's
// origin, delivers it and returns the stamped change.
func (h *Hub) Publish(change models.Change) models.Change {
	if change.Origin == "" {
		change.Origin = h.origin
	}
	stamped := h.deliver(change)

	h.mu.Lock()
	callbacks := append([]func(models.Change){}, h.onPublish...)
	h.mu.Unlock()
	for _, fn := range callbacks {
		fn(stamped)
	}
	return stamped
}

// Inject delivers a change received from another instance. Changes that
// originated here are ignored.
func (h *Hub) Inject(change models.Change) bool {
	if change.Origin == h.origin {
		return false
	}
	h.deliver(change)
	return true
}

func (h *Hub) deliver(change models.Change) models.Change {
	if change.CommitTimestamp.IsZero() {
		change.CommitTimestamp = time.Now()
	}

	h.mu.Lock()
	h.seq++
	change.Seq = h.seq
	var dropped []string
	for _, sub := range h.subs {
		if !sub.matches(change) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			dropped = append(dropped, sub.ID)
			h.remove(sub)
		}
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.IncRealtimeChange(change.Table, string(change.Type))
	if len(dropped) > 0 {
		metrics.SetRealtimeSubscribers(n)
		for _, id := range dropped {
			metrics.IncRealtimeDropped()
			h.logger.Warn().Str("subscription", id).Str("table", change.Table).Msg("dropping slow subscriber")
		}
	}
	return change
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		h.remove(sub)
	}
	metrics.SetRealtimeSubscribers(0)
}
