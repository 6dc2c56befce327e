package ordersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/gateway"
	"github.com/aquaflow/tanker-backend/internal/models"
)

func driverExtra() booking.Extra {
	return booking.Extra{DriverID: 42, DriverName: "Ravi", DriverPhone: "0700111222"}
}

func seededSession(t *testing.T, gw *fakeGateway) *Session {
	t.Helper()
	session := NewSession(42, gw, Options{TTL: time.Minute})
	t.Cleanup(session.Close)
	if _, err := session.Coordinator.Load(context.Background(), booking.ViewAvailable, false); err != nil {
		t.Fatalf("seed available view: %v", err)
	}
	return session
}

func TestMutateAppliesOptimisticallyBeforeStoreResolves(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7), availableBooking(2, 8)}}
	release := make(chan struct{})
	gw.updateFn = func(ctx context.Context, id uint, status models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
		<-release
		b := availableBooking(id, 7)
		b.Status = status
		return &b, nil
	}

	session := seededSession(t, gw)

	done := make(chan error, 1)
	go func() {
		_, err := session.Mutations.Mutate(context.Background(), 1, models.BookingStatusAccepted, driverExtra())
		done <- err
	}()

	// Before the store resolves, the accepted booking must already be out
	// of the available slot and flagged as processing
	deadline := time.After(time.Second)
	for {
		entry, _ := session.Cache.Get(booking.ViewAvailable)
		if len(entry.Bookings) == 1 && entry.Bookings[0].ID == 2 && session.Mutations.Processing(1) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("optimistic splice not visible; slot = %+v", entry.Bookings)
		case <-time.After(time.Millisecond):
		}
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if session.Mutations.Processing(1) {
		t.Fatal("processing flag not cleared after settle")
	}
}

func TestMutateSuccessRefreshesAuthoritativeData(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7), availableBooking(2, 8)}}
	gw.updateFn = func(ctx context.Context, id uint, status models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
		// The store accepts; the booking disappears from the available set
		gw.mu.Lock()
		gw.available = []models.Booking{availableBooking(2, 8)}
		gw.mu.Unlock()
		b := availableBooking(id, 7)
		b.Status = status
		return &b, nil
	}

	session := seededSession(t, gw)

	updated, err := session.Mutations.Mutate(context.Background(), 1, models.BookingStatusAccepted, driverExtra())
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if updated.Status != models.BookingStatusAccepted {
		t.Fatalf("returned status %s, want accepted", updated.Status)
	}

	// The forced refresh replaced the optimistic guess with store truth
	entry, ok := session.Cache.Get(booking.ViewAvailable)
	if !ok {
		t.Fatal("available slot missing after refresh")
	}
	if len(entry.Bookings) != 1 || entry.Bookings[0].ID != 2 {
		t.Fatalf("available slot = %+v, want authoritative post-accept set", entry.Bookings)
	}
	if calls, _, _ := gw.counts(); calls != 2 {
		t.Fatalf("expected seed + refresh fetches, got %d", calls)
	}
}

func TestMutateFailureRollsBackToStoreState(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7), availableBooking(2, 8)}}
	wantErr := errors.New("connection reset")
	gw.updateFn = func(ctx context.Context, id uint, status models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
		return nil, wantErr
	}

	session := seededSession(t, gw)

	_, err := session.Mutations.Mutate(context.Background(), 1, models.BookingStatusAccepted, driverExtra())
	if !errors.Is(err, wantErr) {
		t.Fatalf("mutate error = %v, want the store failure surfaced", err)
	}

	// After settling, the slot holds the pre-mutation list fetched fresh
	// from the store, not the optimistic guess
	entry, ok := session.Cache.Get(booking.ViewAvailable)
	if !ok {
		t.Fatal("available slot missing after rollback refresh")
	}
	if len(entry.Bookings) != 2 {
		t.Fatalf("rollback left %d bookings cached, want the store's 2", len(entry.Bookings))
	}
	if calls, _, _ := gw.counts(); calls != 2 {
		t.Fatalf("expected seed + rollback fetches, got %d", calls)
	}
}

func TestMutateConflictIsDistinguishable(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7)}}
	gw.updateFn = func(ctx context.Context, id uint, status models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
		return nil, &gateway.ConflictError{BookingID: id, AcceptedBy: "Asha"}
	}

	session := seededSession(t, gw)

	_, err := session.Mutations.Mutate(context.Background(), 1, models.BookingStatusAccepted, driverExtra())
	if !errors.Is(err, gateway.ErrBookingConflict) {
		t.Fatalf("error = %v, want a conflict, not a generic failure", err)
	}
	var conflict *gateway.ConflictError
	if !errors.As(err, &conflict) || conflict.AcceptedBy != "Asha" {
		t.Fatalf("conflict detail lost: %v", err)
	}
}

func TestMutateRejectsInvalidTransitionWithoutStoreCall(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7)}}
	storeCalls := 0
	gw.updateFn = func(ctx context.Context, id uint, status models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
		storeCalls++
		return nil, nil
	}

	session := seededSession(t, gw)

	// Delivering a pending booking is a programming error, rejected locally
	_, err := session.Mutations.Mutate(context.Background(), 1, models.BookingStatusDelivered, booking.Extra{})
	if !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
	if storeCalls != 0 {
		t.Fatalf("invalid transition reached the store %d times", storeCalls)
	}
}

func TestConcurrentMutationsOnDifferentBookingsAllowed(t *testing.T) {
	gw := &fakeGateway{available: []models.Booking{availableBooking(1, 7), availableBooking(2, 8)}}
	release := make(chan struct{})
	gw.updateFn = func(ctx context.Context, id uint, status models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
		<-release
		b := availableBooking(id, 7)
		b.Status = status
		return &b, nil
	}

	session := seededSession(t, gw)

	done := make(chan error, 1)
	go func() {
		_, err := session.Mutations.Mutate(context.Background(), 1, models.BookingStatusAccepted, driverExtra())
		done <- err
	}()
	for !session.Mutations.Processing(1) {
		time.Sleep(time.Millisecond)
	}

	// Same booking: rejected while in flight
	if _, err := session.Mutations.Mutate(context.Background(), 1, models.BookingStatusAccepted, driverExtra()); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("second mutation on same booking: %v, want ErrMutationInFlight", err)
	}

	// Different booking: proceeds concurrently
	other := make(chan error, 1)
	go func() {
		_, err := session.Mutations.Mutate(context.Background(), 2, models.BookingStatusAccepted, driverExtra())
		other <- err
	}()
	for !session.Mutations.Processing(2) {
		time.Sleep(time.Millisecond)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first mutation: %v", err)
	}
	if err := <-other; err != nil {
		t.Fatalf("second mutation: %v", err)
	}
}
