package ordersync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/gateway"
	"github.com/aquaflow/tanker-backend/internal/models"
)

// ErrMutationInFlight rejects a second mutation on a booking that is still
// being processed. Mutations on different bookings run concurrently.
var ErrMutationInFlight = errors.New("ordersync: booking mutation already in flight")

// MutationController applies status transitions optimistically: the cached
// view reflects the expected post-transition booking before the store call
// resolves, and is rolled back to authoritative state on failure.
type MutationController struct {
	cache       *ViewCache
	coordinator *Coordinator
	gw          gateway.Gateway

	mu         sync.Mutex
	processing map[uint]bool
}

func NewMutationController(cache *ViewCache, coordinator *Coordinator, gw gateway.Gateway) *MutationController {
	return &MutationController{
		cache:       cache,
		coordinator: coordinator,
		gw:          gw,
		processing:  make(map[uint]bool),
	}
}

// Processing reports whether a mutation for the booking is still in flight,
// so a UI can disable exactly the row being mutated
func (m *MutationController) Processing(bookingID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing[bookingID]
}

// Mutate applies the transition to the cache immediately, then issues the
// store mutation. On success the affected views are invalidated and the
// source view force-refreshed so server-assigned fields replace the local
// guess; on failure the optimistic entry is discarded (reset, not restored)
// and the true state is refetched.
func (m *MutationController) Mutate(ctx context.Context, bookingID uint, newStatus models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
	m.mu.Lock()
	if m.processing[bookingID] {
		m.mu.Unlock()
		return nil, ErrMutationInFlight
	}
	m.processing[bookingID] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.processing, bookingID)
		m.mu.Unlock()
	}()

	sourceView, cached, found := m.findCached(bookingID)

	var destView booking.View
	var hasDest bool
	if found {
		// Compute the expected post-transition shape locally and reject
		// illegal transitions before any store traffic
		optimistic := cached
		if err := booking.Apply(&optimistic, newStatus, extra, time.Now()); err != nil {
			return nil, err
		}
		destView, hasDest = booking.ViewFor(&optimistic)
		m.splice(sourceView, destView, hasDest, optimistic)
	}

	updated, err := m.gw.UpdateStatus(ctx, bookingID, newStatus, extra)
	if err != nil {
		if found {
			// Reset to empty, never back to the optimistic value, and
			// refetch so the UI reverts to true server state
			m.cache.Invalidate(sourceView)
			if hasDest && destView != sourceView {
				m.cache.Invalidate(destView)
			}
			m.refresh(ctx, sourceView)
		}
		return nil, err
	}

	if found {
		m.cache.Invalidate(sourceView)
		if hasDest && destView != sourceView {
			m.cache.Invalidate(destView)
		}
		m.refresh(ctx, sourceView)
	}
	return updated, nil
}

// findCached locates the booking in whichever view slot currently holds it
func (m *MutationController) findCached(bookingID uint) (booking.View, models.Booking, bool) {
	for _, view := range []booking.View{booking.ViewAvailable, booking.ViewActive, booking.ViewCompleted} {
		entry, ok := m.cache.Get(view)
		if !ok {
			continue
		}
		for _, b := range entry.Bookings {
			if b.ID == bookingID {
				return view, b, true
			}
		}
	}
	return "", models.Booking{}, false
}

// splice rewrites the source slot without the pre-mutation booking and, when
// the destination slot is populated, prepends the optimistic shape there so
// both tabs reflect the change with zero perceived latency
func (m *MutationController) splice(source, dest booking.View, hasDest bool, optimistic models.Booking) {
	if entry, ok := m.cache.Get(source); ok {
		replaced := make([]models.Booking, 0, len(entry.Bookings))
		for _, b := range entry.Bookings {
			if b.ID != optimistic.ID {
				replaced = append(replaced, b)
				continue
			}
			if hasDest && dest == source {
				replaced = append(replaced, optimistic)
			}
		}
		m.cache.Put(source, replaced)
	}

	if hasDest && dest != source {
		if entry, ok := m.cache.Get(dest); ok {
			m.cache.Put(dest, append([]models.Booking{optimistic}, entry.Bookings...))
		}
	}
}

// refresh replaces the optimistic guess with authoritative data; a
// superseded or failed refresh leaves the slot invalidated, which is safe
func (m *MutationController) refresh(ctx context.Context, view booking.View) {
	_, _ = m.coordinator.Load(ctx, view, true)
}
