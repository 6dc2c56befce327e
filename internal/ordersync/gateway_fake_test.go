package ordersync

import (
	"context"
	"sync"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/gateway"
	"github.com/aquaflow/tanker-backend/internal/models"
)

// fakeGateway is an in-memory Gateway standing in for the booking store
type fakeGateway struct {
	mu sync.Mutex

	available    []models.Booking
	driverOrders []models.Booking

	availableCalls int
	driverCalls    int
	userCalls      [][]uint

	users    map[uint]models.User
	usersErr error

	updateFn func(ctx context.Context, id uint, status models.BookingStatus, extra booking.Extra) (*models.Booking, error)
}

func (f *fakeGateway) FetchAvailable(ctx context.Context) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availableCalls++
	return append([]models.Booking(nil), f.available...), nil
}

func (f *fakeGateway) FetchForDriver(ctx context.Context, driverID uint, filter *gateway.DriverFilter) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.driverCalls++
	var out []models.Booking
	for _, b := range f.driverOrders {
		if filter != nil && len(filter.Statuses) > 0 && !statusIn(b.Status, filter.Statuses) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeGateway) UpdateStatus(ctx context.Context, bookingID uint, newStatus models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
	f.mu.Lock()
	fn := f.updateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, bookingID, newStatus, extra)
	}
	b := models.Booking{Status: newStatus}
	b.ID = bookingID
	return &b, nil
}

func (f *fakeGateway) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls = append(f.userCalls, append([]uint(nil), ids...))
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	out := make(map[uint]models.User, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeGateway) counts() (available, driver, users int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.availableCalls, f.driverCalls, len(f.userCalls)
}

func statusIn(s models.BookingStatus, set []models.BookingStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func availableBooking(id, customerID uint) models.Booking {
	b := models.Booking{
		CustomerID:     customerID,
		Status:         models.BookingStatusPending,
		CanCancel:      true,
		DeliveryStreet: "45 Tank Rd",
		TotalPrice:     640,
	}
	b.ID = id
	return b
}
