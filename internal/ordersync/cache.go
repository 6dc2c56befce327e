// Package ordersync keeps a driver's view of available, active and completed
// orders consistent with the booking store while absorbing tab switches,
// focus re-entry, pull-to-refresh and optimistic status mutations.
package ordersync

import (
	"sync"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/models"
)

// DefaultTTL is how long a cached view is served without a store round trip
const DefaultTTL = 5 * time.Minute

// Entry is one cached view collection with its fetch timestamp
type Entry struct {
	Bookings  []models.Booking
	Timestamp time.Time
}

// ViewCache holds one slot per driver view. It is an explicit instance
// constructed per session and passed by reference; the same booking can be a
// member of at most one view at a time, so slots never share data.
type ViewCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	slots map[booking.View]Entry
	now   func() time.Time
}

func NewViewCache(ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ViewCache{
		ttl:   ttl,
		slots: make(map[booking.View]Entry, 3),
		now:   time.Now,
	}
}

// Get returns the slot for a view, populated or not
func (c *ViewCache) Get(view booking.View) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.slots[view]
	return entry, ok
}

// Fresh reports whether the view's slot can be served without a fetch
func (c *ViewCache) Fresh(view booking.View) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.slots[view]
	return ok && c.now().Sub(entry.Timestamp) < c.ttl
}

// Put overwrites the slot's data and timestamp, whether or not the slot was
// previously fresh: a completed fetch always wins over older data
func (c *ViewCache) Put(view booking.View, bookings []models.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[view] = Entry{Bookings: bookings, Timestamp: c.now()}
}

// Invalidate drops the given slots so the next read for each is forced
// through the store. Mutations that move a booking between views must
// invalidate both the source and the destination.
func (c *ViewCache) Invalidate(views ...booking.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, view := range views {
		delete(c.slots, view)
	}
}

// InvalidateAll clears every slot
func (c *ViewCache) InvalidateAll() {
	c.Invalidate(booking.ViewAvailable, booking.ViewActive, booking.ViewCompleted)
}
