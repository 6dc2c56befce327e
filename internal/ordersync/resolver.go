package ordersync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aquaflow/tanker-backend/internal/models"
)

// DefaultResolveWindow coalesces rapid successive booking-set changes into
// one batched profile lookup
const DefaultResolveWindow = 100 * time.Millisecond

// ProfileAddress is a customer's saved address, shown alongside an order
// only when it differs from the delivery address
type ProfileAddress struct {
	Street   string `json:"street"`
	Landmark string `json:"landmark,omitempty"`
}

// UserSource is the batched lookup backing the resolver
type UserSource interface {
	GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

type resolveFlight struct {
	ids  map[uint]struct{}
	done chan struct{}
}

// AddressResolver annotates rendered bookings with each customer's saved
// profile address using one batched lookup per window, never one call per
// row. Results are cached for the session, an explicit nil recording "no
// different address or lookup failed" so misses are never refetched.
type AddressResolver struct {
	source UserSource
	window time.Duration

	mu     sync.Mutex
	cache  map[uint]*ProfileAddress
	flight *resolveFlight
}

func NewAddressResolver(source UserSource, window time.Duration) *AddressResolver {
	if window <= 0 {
		window = DefaultResolveWindow
	}
	return &AddressResolver{
		source: source,
		window: window,
		cache:  make(map[uint]*ProfileAddress),
	}
}

// Annotate resolves addresses for every unique customer in the booking set.
// Fully cached sets return immediately with no store traffic; otherwise the
// uncached ids join the current coalescing window and the caller waits for
// its single batched flush. The result maps customer id to a saved address
// that differs from that customer's delivery address, or nothing.
func (r *AddressResolver) Annotate(ctx context.Context, bookings []models.Booking) map[uint]ProfileAddress {
	r.mu.Lock()
	var missing []uint
	seen := make(map[uint]struct{}, len(bookings))
	for _, b := range bookings {
		if _, dup := seen[b.CustomerID]; dup {
			continue
		}
		seen[b.CustomerID] = struct{}{}
		if _, cached := r.cache[b.CustomerID]; !cached {
			missing = append(missing, b.CustomerID)
		}
	}

	if len(missing) > 0 {
		if r.flight == nil {
			r.flight = &resolveFlight{
				ids:  make(map[uint]struct{}),
				done: make(chan struct{}),
			}
			time.AfterFunc(r.window, r.flush)
		}
		for _, id := range missing {
			r.flight.ids[id] = struct{}{}
		}
		flight := r.flight
		r.mu.Unlock()

		select {
		case <-flight.done:
		case <-ctx.Done():
			// Annotation is a non-critical enhancement; an impatient
			// caller just renders without it
		}
		r.mu.Lock()
	}
	defer r.mu.Unlock()

	result := make(map[uint]ProfileAddress)
	for _, b := range bookings {
		addr := r.cache[b.CustomerID]
		if addr == nil || addr.Street == b.DeliveryStreet {
			continue
		}
		result[b.CustomerID] = *addr
	}
	return result
}

// flush issues exactly one batched lookup for the window's accumulated ids
func (r *AddressResolver) flush() {
	r.mu.Lock()
	flight := r.flight
	r.flight = nil
	if flight == nil {
		r.mu.Unlock()
		return
	}
	ids := make([]uint, 0, len(flight.ids))
	for id := range flight.ids {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	users, err := r.source.GetUsersByIDs(context.Background(), ids)

	r.mu.Lock()
	for _, id := range ids {
		if err != nil {
			// Cache the failure so it does not retry on every render
			r.cache[id] = nil
			continue
		}
		user, ok := users[id]
		if !ok || !user.HasSavedAddress() {
			r.cache[id] = nil
			continue
		}
		r.cache[id] = &ProfileAddress{Street: user.SavedStreet, Landmark: user.SavedLandmark}
	}
	r.mu.Unlock()

	if err != nil {
		log.Printf("address resolver: batch lookup for %d customers failed: %v", len(ids), err)
	}

	close(flight.done)
}
