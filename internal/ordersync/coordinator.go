package ordersync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/models"
)

// DefaultFocusDebounce suppresses focus-triggered loads that land right
// after a tab switch already loaded the same view
const DefaultFocusDebounce = 500 * time.Millisecond

// ErrLoadSuperseded marks a load whose result was discarded because a newer
// load for the session started while it was in flight. It is never shown to
// the user; callers fall back to whatever the winning load cached.
var ErrLoadSuperseded = errors.New("ordersync: load superseded by a newer request")

// Fetcher retrieves a view's collection from the booking store
type Fetcher func(ctx context.Context, view booking.View) ([]models.Booking, error)

// Coordinator serializes view loads for one driver session. It owns a single
// cancellation scope: starting a new load cancels any previous in-flight load
// unconditionally, so only the most recently issued fetch can update the
// cache ("last write wins" by issuance order, enforced via cancellation).
type Coordinator struct {
	cache *ViewCache
	fetch Fetcher

	mu            sync.Mutex
	cancel        context.CancelFunc
	seq           uint64
	lastTabSwitch time.Time
	focusDebounce time.Duration
	now           func() time.Time
}

func NewCoordinator(cache *ViewCache, fetch Fetcher, focusDebounce time.Duration) *Coordinator {
	if focusDebounce <= 0 {
		focusDebounce = DefaultFocusDebounce
	}
	return &Coordinator{
		cache:         cache,
		fetch:         fetch,
		focusDebounce: focusDebounce,
		now:           time.Now,
	}
}

// Load returns the view's collection, serving a fresh cache slot without any
// store round trip unless force is set. A successful fetch overwrites the
// slot; a superseded fetch is discarded even if it completes.
func (c *Coordinator) Load(ctx context.Context, view booking.View, force bool) ([]models.Booking, error) {
	c.mu.Lock()
	if !force && c.cache.Fresh(view) {
		entry, _ := c.cache.Get(view)
		c.mu.Unlock()
		return entry.Bookings, nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++
	mySeq := c.seq
	c.mu.Unlock()

	bookings, err := c.fetch(loadCtx, view)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != mySeq {
		// A newer load took over while this one was in flight; its
		// outcome, success or failure, no longer matters
		return nil, ErrLoadSuperseded
	}
	c.cancel = nil
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrLoadSuperseded
		}
		return nil, err
	}

	c.cache.Put(view, bookings)
	return bookings, nil
}

// LoadForTabSwitch handles the user switching tabs: it stamps the switch so
// an immediately following focus re-entry does not repeat the work
func (c *Coordinator) LoadForTabSwitch(ctx context.Context, view booking.View) ([]models.Booking, error) {
	c.mu.Lock()
	c.lastTabSwitch = c.now()
	c.mu.Unlock()
	return c.Load(ctx, view, false)
}

// LoadOnFocus handles the screen regaining focus. Loads within the debounce
// window of the last tab switch are suppressed and served from the slot as
// is. Focus returning from a payment flow always forces a refresh of the
// active view: a delivery may have completed there and a cache hit would
// mask it.
func (c *Coordinator) LoadOnFocus(ctx context.Context, view booking.View, fromPayment bool) ([]models.Booking, error) {
	if fromPayment {
		return c.Load(ctx, booking.ViewActive, true)
	}

	c.mu.Lock()
	suppressed := c.now().Sub(c.lastTabSwitch) < c.focusDebounce
	c.mu.Unlock()

	if suppressed {
		entry, _ := c.cache.Get(view)
		return entry.Bookings, nil
	}
	return c.Load(ctx, view, false)
}

// Close cancels any in-flight load; called on session teardown
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
}
