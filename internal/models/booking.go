package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusInTransit BookingStatus = "in_transit"
	BookingStatusDelivered BookingStatus = "delivered"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a water-tanker delivery order. The database row is the source
// of truth; driver-side caches only ever hold read-through copies of it.
type Booking struct {
	gorm.Model
	CustomerID uint  `json:"customerId" gorm:"not null;index"`
	Customer   User  `json:"customer"`
	DriverID   *uint `json:"driverId,omitempty" gorm:"index"`
	Driver     *User `json:"driver,omitempty"`

	TankerSizeID uint       `json:"tankerSizeId" gorm:"not null"`
	TankerSize   TankerSize `json:"tankerSize"`

	BasePrice      float64 `json:"basePrice" gorm:"not null"`
	DistanceCharge float64 `json:"distanceCharge" gorm:"not null"`
	TotalPrice     float64 `json:"totalPrice" gorm:"not null"`

	DeliveryStreet   string  `json:"deliveryStreet" gorm:"not null"`
	DeliveryLandmark string  `json:"deliveryLandmark"`
	DeliveryLat      float64 `json:"deliveryLat" gorm:"not null"`
	DeliveryLng      float64 `json:"deliveryLng" gorm:"not null"`
	DistanceKm       float64 `json:"distanceKm" gorm:"not null"`

	// Nil means deliver immediately
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`

	Status             BookingStatus `json:"status" gorm:"not null;default:'pending';index"`
	CanCancel          bool          `json:"canCancel" gorm:"not null;default:true"`
	CancellationReason string        `json:"cancellationReason,omitempty"`

	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`

	PaymentCollected bool   `json:"paymentCollected" gorm:"not null;default:false"`
	PaymentMethod    string `json:"paymentMethod,omitempty"`
	ProofImageURL    string `json:"proofImageUrl,omitempty"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}

// Immediate reports whether the order should be delivered as soon as possible
func (b *Booking) Immediate() bool {
	return b.ScheduledFor == nil
}
