package models

import (
	"gorm.io/gorm"
)

// Pricing is the admin-managed pricing policy. Exactly one active record
// governs all new price calculations.
type Pricing struct {
	gorm.Model
	PricePerKm    float64 `json:"pricePerKm" gorm:"not null"`
	MinimumCharge float64 `json:"minimumCharge" gorm:"not null"`
	UpdatedBy     uint    `json:"updatedBy" gorm:"not null"`
	IsActive      bool    `json:"isActive" gorm:"not null;default:true"`
}

// TableName specifies the table name
func (Pricing) TableName() string {
	return "pricing"
}
