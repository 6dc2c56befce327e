package ordersync

import (
	"context"
	"testing"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/models"
)

func TestLoadWithinTTLFetchesOnce(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7)}}
	session := NewSession(42, gw, Options{TTL: time.Minute})
	defer session.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if len(got) != 1 || got[0].ID != 1 {
			t.Fatalf("load %d returned %d bookings", i, len(got))
		}
	}

	if calls, _, _ := gw.counts(); calls != 1 {
		t.Fatalf("two loads within TTL made %d fetches, want 1", calls)
	}
}

func TestLoadAfterTTLExpiryFetchesAgain(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7)}}
	session := NewSession(42, gw, Options{TTL: 30 * time.Millisecond})
	defer session.Close()

	ctx := context.Background()
	if _, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if calls, _, _ := gw.counts(); calls != 1 {
		t.Fatalf("loads within TTL made %d fetches, want 1", calls)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false); err != nil {
		t.Fatalf("post-expiry load: %v", err)
	}
	if calls, _, _ := gw.counts(); calls != 2 {
		t.Fatalf("post-expiry load made %d total fetches, want 2", calls)
	}
}

func TestForceRefreshBypassesFreshSlot(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7)}}
	session := NewSession(42, gw, Options{TTL: time.Minute})
	defer session.Close()

	ctx := context.Background()
	if _, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false); err != nil {
		t.Fatalf("load: %v", err)
	}

	// New data appears upstream; a forced refresh must see it despite the
	// fresh slot
	gw.mu.Lock()
	gw.available = append(gw.available, availableBooking(2, 9))
	gw.mu.Unlock()

	got, err := session.Coordinator.Load(ctx, booking.ViewAvailable, true)
	if err != nil {
		t.Fatalf("forced load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("forced refresh returned %d bookings, want 2", len(got))
	}
	if calls, _, _ := gw.counts(); calls != 2 {
		t.Fatalf("forced refresh made %d total fetches, want 2", calls)
	}
}

func TestInvalidateForcesNextReadThroughStore(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7)}}
	session := NewSession(42, gw, Options{TTL: time.Minute})
	defer session.Close()

	ctx := context.Background()
	if _, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false); err != nil {
		t.Fatalf("load: %v", err)
	}

	session.Cache.Invalidate(booking.ViewAvailable)

	if _, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false); err != nil {
		t.Fatalf("post-invalidate load: %v", err)
	}
	if calls, _, _ := gw.counts(); calls != 2 {
		t.Fatalf("invalidate did not force a refetch: %d fetches", calls)
	}
}

func TestViewsCacheIndependently(t *testing.T) {
	gw := &fakeGateway{
		available: []models.Booking{availableBooking(1, 7)},
	}
	active := availableBooking(2, 8)
	active.Status = models.BookingStatusAccepted
	gw.driverOrders = []models.Booking{active}

	session := NewSession(42, gw, Options{TTL: time.Minute})
	defer session.Close()

	ctx := context.Background()
	if _, err := session.Coordinator.Load(ctx, booking.ViewAvailable, false); err != nil {
		t.Fatalf("available load: %v", err)
	}
	got, err := session.Coordinator.Load(ctx, booking.ViewActive, false)
	if err != nil {
		t.Fatalf("active load: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("active view returned wrong data: %+v", got)
	}

	// Invalidating one view must not touch the other
	session.Cache.Invalidate(booking.ViewActive)
	if !session.Cache.Fresh(booking.ViewAvailable) {
		t.Fatal("invalidating active dropped the available slot")
	}
	if session.Cache.Fresh(booking.ViewActive) {
		t.Fatal("active slot survived invalidation")
	}
}
