package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGateway(t *testing.T) (*GormGateway, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	mock.MatchExpectationsInOrder(false)

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm open error: %v", err)
	}

	return NewGormGateway(db), mock
}

func pendingRow(id uint) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "customer_id", "driver_id", "status", "can_cancel", "total_price"}).
		AddRow(id, 7, nil, string(models.BookingStatusPending), true, 640.0)
}

func acceptExtra() booking.Extra {
	return booking.Extra{DriverID: 42, DriverName: "Ravi", DriverPhone: "0700111222"}
}

func TestUpdateStatusAcceptWinsRace(t *testing.T) {
	g, mock := newMockGateway(t)

	// Initial load of the pending row
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingRow(1))

	// Conditional update matches one row: this driver won
	mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))

	// Authoritative reload with preloads
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "customer_id", "driver_id", "status", "can_cancel", "total_price"}).
			AddRow(1, 7, 42, string(models.BookingStatusAccepted), false, 640.0))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "username"}).AddRow(7, "Meera"))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "username"}).AddRow(42, "Ravi"))
	mock.ExpectQuery(`SELECT (.+) FROM "tanker_sizes"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "liters", "base_price"}))

	updated, err := g.UpdateStatus(context.Background(), 1, models.BookingStatusAccepted, acceptExtra())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if updated.Status != models.BookingStatusAccepted {
		t.Fatalf("status = %s, want accepted", updated.Status)
	}
	if updated.DriverID == nil || *updated.DriverID != 42 {
		t.Fatalf("driver not assigned: %v", updated.DriverID)
	}
	if updated.CanCancel {
		t.Fatal("canCancel not cleared by accept")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusAcceptLosesRace(t *testing.T) {
	g, mock := newMockGateway(t)

	// Row still looks pending when loaded...
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingRow(1))

	// ...but the compare-and-set matches nothing: another driver got there
	mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))

	// Inspection reload shows the winner
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "customer_id", "driver_id", "status", "can_cancel"}).
			AddRow(1, 7, 99, string(models.BookingStatusAccepted), false))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "username"}).AddRow(99, "Asha"))

	_, err := g.UpdateStatus(context.Background(), 1, models.BookingStatusAccepted, acceptExtra())
	if !errors.Is(err, ErrBookingConflict) {
		t.Fatalf("expected ErrBookingConflict, got %v", err)
	}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %T", err)
	}
	if conflict.AcceptedBy != "Asha" {
		t.Fatalf("conflict winner = %q, want Asha", conflict.AcceptedBy)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusInvalidTransitionNeverWrites(t *testing.T) {
	g, mock := newMockGateway(t)

	// Delivering a pending booking must be rejected before any UPDATE
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingRow(1))

	_, err := g.UpdateStatus(context.Background(), 1, models.BookingStatusDelivered, booking.Extra{})
	if !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	g, mock := newMockGateway(t)

	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "status"}))

	_, err := g.UpdateStatus(context.Background(), 404, models.BookingStatusAccepted, acceptExtra())
	if !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestGetUsersByIDsSingleQuery(t *testing.T) {
	g, mock := newMockGateway(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "username", "saved_street"}).
			AddRow(7, "Meera", "12 Lake Rd").
			AddRow(9, "Arun", ""))

	users, err := g.GetUsersByIDs(context.Background(), []uint{7, 9})
	if err != nil {
		t.Fatalf("batch lookup: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[7].SavedStreet != "12 Lake Rd" {
		t.Fatalf("saved address not mapped: %+v", users[7])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetUsersByIDsEmptyInput(t *testing.T) {
	g, _ := newMockGateway(t)

	users, err := g.GetUsersByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty lookup: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(users))
	}
}
