package ordersync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/gateway"
	"github.com/aquaflow/tanker-backend/internal/models"
)

// Options tune the session's caching and debounce behavior; zero values take
// the defaults
type Options struct {
	TTL           time.Duration
	FocusDebounce time.Duration
	ResolveWindow time.Duration
}

// Session bundles the sync machinery for one driver: the per-view cache, the
// load coordinator, the optimistic mutation controller and the address
// resolver share a lifetime and are disposed together.
type Session struct {
	DriverID    uint
	Cache       *ViewCache
	Coordinator *Coordinator
	Mutations   *MutationController
	Addresses   *AddressResolver
}

// activeStatuses are the statuses backing the "active" driver view
var activeStatuses = []models.BookingStatus{
	models.BookingStatusAccepted,
	models.BookingStatusInTransit,
}

func NewSession(driverID uint, gw gateway.Gateway, opts Options) *Session {
	cache := NewViewCache(opts.TTL)

	fetch := func(ctx context.Context, view booking.View) ([]models.Booking, error) {
		switch view {
		case booking.ViewAvailable:
			return gw.FetchAvailable(ctx)
		case booking.ViewActive:
			return gw.FetchForDriver(ctx, driverID, &gateway.DriverFilter{Statuses: activeStatuses})
		case booking.ViewCompleted:
			return gw.FetchForDriver(ctx, driverID, &gateway.DriverFilter{
				Statuses: []models.BookingStatus{models.BookingStatusDelivered},
			})
		default:
			return nil, fmt.Errorf("ordersync: unknown view %q", view)
		}
	}

	coordinator := NewCoordinator(cache, fetch, opts.FocusDebounce)

	return &Session{
		DriverID:    driverID,
		Cache:       cache,
		Coordinator: coordinator,
		Mutations:   NewMutationController(cache, coordinator, gw),
		Addresses:   NewAddressResolver(gw, opts.ResolveWindow),
	}
}

func (s *Session) Close() {
	s.Coordinator.Close()
}

// Registry hands out one session per driver, created on demand and kept for
// the driver's login lifetime
type Registry struct {
	gw   gateway.Gateway
	opts Options

	mu       sync.Mutex
	sessions map[uint]*Session
}

func NewRegistry(gw gateway.Gateway, opts Options) *Registry {
	return &Registry{
		gw:       gw,
		opts:     opts,
		sessions: make(map[uint]*Session),
	}
}

func (r *Registry) Session(driverID uint) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok {
		return s
	}
	s := NewSession(driverID, r.gw, r.opts)
	r.sessions[driverID] = s
	return s
}

// Drop disposes a driver's session, cancelling any in-flight load
func (r *Registry) Drop(driverID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok {
		s.Close()
		delete(r.sessions, driverID)
	}
}

// InvalidateViews drops the given view slots in every live session; wired to
// the booking-update feed so a mutation on one instance forces the next read
// everywhere through the store
func (r *Registry) InvalidateViews(views ...booking.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Cache.Invalidate(views...)
	}
}
