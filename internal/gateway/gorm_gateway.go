package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/models"
	"gorm.io/gorm"
)

// GormGateway is the Postgres-backed Gateway implementation
type GormGateway struct {
	db *gorm.DB
}

func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

// FetchAvailable returns all pending, unassigned bookings. Immediate orders
// (scheduled_for IS NULL) sort first, then by schedule and creation time.
func (g *GormGateway) FetchAvailable(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := g.db.WithContext(ctx).
		Preload("Customer").
		Preload("TankerSize").
		Where("status = ? AND driver_id IS NULL", models.BookingStatusPending).
		Order("scheduled_for ASC NULLS FIRST, created_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("fetch available bookings: %w", err)
	}
	return bookings, nil
}

// FetchForDriver returns the driver's bookings, newest first
func (g *GormGateway) FetchForDriver(ctx context.Context, driverID uint, filter *DriverFilter) ([]models.Booking, error) {
	query := g.db.WithContext(ctx).
		Preload("Customer").
		Preload("TankerSize").
		Where("driver_id = ?", driverID)

	if filter != nil {
		if len(filter.Statuses) > 0 {
			query = query.Where("status IN ?", filter.Statuses)
		}
		if filter.DeliveredSince != nil {
			query = query.Where("delivered_at >= ?", *filter.DeliveredSince)
		}
	}

	var bookings []models.Booking
	if err := query.Order("created_at DESC").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("fetch driver bookings: %w", err)
	}
	return bookings, nil
}

// requiredFrom is the status a booking must still hold for each transition,
// enforced in the UPDATE's WHERE clause so concurrent writers cannot both win
var requiredFrom = map[models.BookingStatus]models.BookingStatus{
	models.BookingStatusAccepted:  models.BookingStatusPending,
	models.BookingStatusInTransit: models.BookingStatusAccepted,
	models.BookingStatusDelivered: models.BookingStatusInTransit,
	models.BookingStatusCancelled: models.BookingStatusPending,
}

// UpdateStatus applies a transition with compare-and-set semantics. Accept
// only succeeds while the row is still pending with driver_id unset; zero
// rows affected on an existing booking means another driver won the race.
func (g *GormGateway) UpdateStatus(ctx context.Context, bookingID uint, newStatus models.BookingStatus, extra booking.Extra) (*models.Booking, error) {
	from, ok := requiredFrom[newStatus]
	if !ok {
		return nil, fmt.Errorf("%w: no transition targets %s", booking.ErrInvalidTransition, newStatus)
	}

	var current models.Booking
	if err := g.db.WithContext(ctx).First(&current, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking %d: %w", bookingID, err)
	}

	// Validate against the state machine before touching the row, so an
	// illegal request is a clean rejection rather than a silent no-op
	now := time.Now()
	staged := current
	if err := booking.Apply(&staged, newStatus, extra, now); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":     newStatus,
		"updated_at": now,
	}
	cond := g.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, from)

	switch newStatus {
	case models.BookingStatusAccepted:
		cond = cond.Where("driver_id IS NULL")
		updates["driver_id"] = extra.DriverID
		updates["accepted_at"] = now
		updates["can_cancel"] = false
	case models.BookingStatusCancelled:
		updates["cancellation_reason"] = extra.CancellationReason
		updates["can_cancel"] = false
	case models.BookingStatusDelivered:
		updates["delivered_at"] = now
		updates["payment_collected"] = extra.PaymentCollected
		updates["payment_method"] = extra.PaymentMethod
		if extra.ProofImageURL != "" {
			updates["proof_image_url"] = extra.ProofImageURL
		}
	}

	res := cond.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update booking %d: %w", bookingID, res.Error)
	}

	if res.RowsAffected == 0 {
		return nil, g.resolveLostUpdate(ctx, bookingID, newStatus)
	}

	var updated models.Booking
	if err := g.db.WithContext(ctx).Preload("Customer").Preload("Driver").Preload("TankerSize").
		First(&updated, bookingID).Error; err != nil {
		return nil, fmt.Errorf("reload booking %d: %w", bookingID, err)
	}
	return &updated, nil
}

// resolveLostUpdate classifies a zero-row conditional update: the booking was
// deleted, someone else accepted it, or its status moved on underneath us
func (g *GormGateway) resolveLostUpdate(ctx context.Context, bookingID uint, attempted models.BookingStatus) error {
	var row models.Booking
	if err := g.db.WithContext(ctx).Preload("Driver").First(&row, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("inspect booking %d after lost update: %w", bookingID, err)
	}

	if attempted == models.BookingStatusAccepted && row.DriverID != nil {
		conflict := &ConflictError{BookingID: bookingID}
		if row.Driver != nil {
			conflict.AcceptedBy = row.Driver.Username
		}
		return conflict
	}

	return fmt.Errorf("%w: booking %d is %s", booking.ErrInvalidTransition, bookingID, row.Status)
}

// GetUsersByIDs resolves profiles with a single IN query instead of one
// query per id
func (g *GormGateway) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	result := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []models.User
	if err := g.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("batch user lookup: %w", err)
	}

	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}
