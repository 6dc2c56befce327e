package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/aquaflow/tanker-backend/internal/models"
)

// View is one of the three driver-facing order buckets
type View string

const (
	ViewAvailable View = "available"
	ViewActive    View = "active"
	ViewCompleted View = "completed"
)

var (
	ErrInvalidTransition = errors.New("booking: invalid status transition")
	ErrDriverRequired    = errors.New("booking: accept requires driver identity")
	ErrReasonRequired    = errors.New("booking: cancellation requires a reason")
)

// Extra carries the fields a transition may require beyond the new status
type Extra struct {
	DriverID    uint
	DriverName  string
	DriverPhone string

	CancellationReason string

	PaymentCollected bool
	PaymentMethod    string
	ProofImageURL    string
}

// transitions is the full set of legal status edges. Cancellation is only
// reachable from pending: CanCancel flips to false permanently on acceptance
// and cancelling an accepted order is rejected, not hidden.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending:   {models.BookingStatusAccepted, models.BookingStatusCancelled},
	models.BookingStatusAccepted:  {models.BookingStatusInTransit},
	models.BookingStatusInTransit: {models.BookingStatusDelivered},
}

// CanTransition reports whether from -> to is a legal edge
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ViewFor maps a booking to the driver view it belongs to. A booking is a
// member of at most one view at a time; cancelled orders belong to none.
func ViewFor(b *models.Booking) (View, bool) {
	switch b.Status {
	case models.BookingStatusPending:
		if b.DriverID == nil {
			return ViewAvailable, true
		}
		return "", false
	case models.BookingStatusAccepted, models.BookingStatusInTransit:
		return ViewActive, true
	case models.BookingStatusDelivered:
		return ViewCompleted, true
	default:
		return "", false
	}
}

// Apply validates the transition and mutates b with its effects: the new
// status, UpdatedAt, the once-only lifecycle timestamps and the fields the
// transition requires. It never touches the store; callers persist the result.
func Apply(b *models.Booking, to models.BookingStatus, extra Extra, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}

	switch to {
	case models.BookingStatusAccepted:
		if extra.DriverID == 0 || extra.DriverName == "" || extra.DriverPhone == "" {
			return ErrDriverRequired
		}
		driverID := extra.DriverID
		b.DriverID = &driverID
		driver := models.User{
			Username:    extra.DriverName,
			PhoneNumber: extra.DriverPhone,
			UserType:    string(models.UserTypeDriver),
		}
		driver.ID = driverID
		b.Driver = &driver
		acceptedAt := now
		b.AcceptedAt = &acceptedAt
		b.CanCancel = false

	case models.BookingStatusCancelled:
		if extra.CancellationReason == "" {
			return ErrReasonRequired
		}
		if !b.CanCancel {
			return fmt.Errorf("%w: booking can no longer be cancelled", ErrInvalidTransition)
		}
		b.CancellationReason = extra.CancellationReason

	case models.BookingStatusDelivered:
		deliveredAt := now
		b.DeliveredAt = &deliveredAt
		b.PaymentCollected = extra.PaymentCollected
		b.PaymentMethod = extra.PaymentMethod
		if extra.ProofImageURL != "" {
			b.ProofImageURL = extra.ProofImageURL
		}
	}

	b.Status = to
	b.UpdatedAt = now
	return nil
}
