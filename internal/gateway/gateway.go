// Package gateway is the boundary to the booking source of truth. The driver
// sync layer only ever talks to the store through this contract, so tests can
// substitute a fake and the cache never depends on GORM.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/models"
)

var (
	ErrBookingNotFound = errors.New("gateway: booking not found")
	ErrBookingConflict = errors.New("gateway: booking already accepted by another driver")
)

// ConflictError reports a lost accept race, carrying the winning driver's
// name so the caller can show who owns the order after a refresh
type ConflictError struct {
	BookingID  uint
	AcceptedBy string
}

func (e *ConflictError) Error() string {
	if e.AcceptedBy != "" {
		return fmt.Sprintf("booking %d already accepted by %s", e.BookingID, e.AcceptedBy)
	}
	return fmt.Sprintf("booking %d already accepted by another driver", e.BookingID)
}

func (e *ConflictError) Unwrap() error {
	return ErrBookingConflict
}

// DriverFilter narrows FetchForDriver results
type DriverFilter struct {
	Statuses []models.BookingStatus
	// Lower bound on delivery time, used by earnings aggregation
	DeliveredSince *time.Time
}

// Gateway persists bookings and serves role/status-filtered collections
type Gateway interface {
	// FetchAvailable returns pending bookings with no driver assigned,
	// immediate orders first
	FetchAvailable(ctx context.Context) ([]models.Booking, error)

	// FetchForDriver returns the driver's bookings, optionally filtered
	FetchForDriver(ctx context.Context, driverID uint, filter *DriverFilter) ([]models.Booking, error)

	// UpdateStatus applies a lifecycle transition and returns the
	// authoritative post-mutation booking. The accept transition is
	// compare-and-set: it succeeds only if the booking is still pending
	// with no driver, and loses the race with a *ConflictError.
	UpdateStatus(ctx context.Context, bookingID uint, newStatus models.BookingStatus, extra booking.Extra) (*models.Booking, error)

	// GetUsersByIDs resolves user profiles in one batched query
	GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
}
