// Package notifier fans trip-row changes out to filtered subscribers.
//
// A subscriber is told only that its view is stale; it must refetch its
// working set. Signals coalesce: many changes between two reads collapse
// into one pending signal. Delivery is at-least-once and unordered.
package notifier

import (
	"sync"

	"github.com/shiva/tripmatch/internal/model"
)

// Filter selects which trip changes a subscription cares about.
type Filter struct {
	driverID   string
	unassigned bool
}

// ForDriver matches changes to trips assigned (before or after) to driverID.
func ForDriver(driverID string) Filter { return Filter{driverID: driverID} }

// ForUnassigned matches changes to trips in (or leaving) the unassigned pool.
func ForUnassigned() Filter { return Filter{unassigned: true} }

// Matches reports whether c touches a row selected by f, either the old or
// the new version of it. A change without a trip id is a resync broadcast.
func (f Filter) Matches(c model.TripChange) bool {
	if c.TripID == "" {
		return true
	}
	if c.Op != model.ChangeDelete && f.selects(c.DriverID) {
		return true
	}
	if c.Op != model.ChangeInsert && f.selects(c.OldDriverID) {
		return true
	}
	return false
}

func (f Filter) selects(driverID *string) bool {
	if f.unassigned {
		return driverID == nil
	}
	return driverID != nil && *driverID == f.driverID
}

// Hub distributes changes to subscriptions.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a subscription that fires when any filter matches.
func (h *Hub) Subscribe(filters ...Filter) *Subscription {
	s := &Subscription{
		hub:     h,
		filters: filters,
		ch:      make(chan struct{}, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closeChan()
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	return s
}

// Publish signals every matching subscription. It never blocks.
func (h *Hub) Publish(c model.TripChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, s := range h.subs {
		if s.matches(c) {
			s.signal()
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription. Later subscriptions start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		s.closeChan()
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is a handle on a filtered change stream.
type Subscription struct {
	hub     *Hub
	id      uint64
	filters []Filter
	ch      chan struct{}
	once    sync.Once
}

// C returns the stale-signal channel. It is closed when the subscription or
// its hub is closed.
func (s *Subscription) C() <-chan struct{} { return s.ch }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.closeChan()
}

func (s *Subscription) matches(c model.TripChange) bool {
	for _, f := range s.filters {
		if f.Matches(c) {
			return true
		}
	}
	return false
}

// signal is called under the hub read lock, so the channel is still open.
func (s *Subscription) signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}
