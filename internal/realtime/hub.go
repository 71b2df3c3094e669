// Package realtime fans row-change events out to subscribers.
//
// Every service mutation publishes a model.ChangeEvent. Subscribers (the SSE
// handler, one per open browser tab or tripsync watch) register a Filter and
// receive matching events on a buffered channel.
//
// DELIVERY GUARANTEES:
// Publish never blocks. A subscriber whose buffer is full misses the event and
// a warning is logged; clients treat the feed as a hint to refetch, not as a
// replicated log, so a dropped event costs at most one stale screen.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/sakif/family-trips/internal/model"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 32

// Filter selects events by trip and, optionally, by table.
// An empty Tables slice matches every table. A subscriber with a TripID only
// sees events published for that trip; an empty TripID sees everything.
type Filter struct {
	TripID string
	Tables []string
}

func (f Filter) matches(ev model.ChangeEvent) bool {
	if f.TripID != "" && ev.TripID != f.TripID {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, t := range f.Tables {
		if t == ev.Table {
			return true
		}
	}
	return false
}

// Hub is an in-process publish/subscribe broker.
// The zero value is not usable; create one with NewHub.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	logger *slog.Logger
}

// NewHub creates a Hub. A buffer of zero selects DefaultBuffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscription is one registered listener.
// Read events from C; call Close when done.
type Subscription struct {
	C <-chan model.ChangeEvent

	ch     chan model.ChangeEvent
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Subscribe registers a listener. Subscribing to a closed hub returns a
// subscription whose channel is already closed.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	ch := make(chan model.ChangeEvent, h.buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	h.subs[sub] = struct{}{}
	h.logger.Debug("realtime subscriber added",
		slog.String("tripID", filter.TripID),
		slog.Int("subscribers", len(h.subs)),
	)
	return sub
}

// Close unregisters the subscription and closes its channel.
// It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
}

// Publish delivers ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev model.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		if !sub.filter.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("realtime subscriber too slow, event dropped",
				slog.String("table", ev.Table),
				slog.String("tripID", ev.TripID),
			)
		}
	}
}

// Close closes every subscription. Later Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(h.subs, sub)
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
