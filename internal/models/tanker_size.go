package models

import (
	"gorm.io/gorm"
)

// TankerSize is read-only reference data for pricing
type TankerSize struct {
	gorm.Model
	Liters      int     `json:"liters" gorm:"not null;unique"`
	BasePrice   float64 `json:"basePrice" gorm:"not null"`
	DisplayName string  `json:"displayName" gorm:"not null"`
	IsActive    bool    `json:"isActive" gorm:"not null;default:true"`
}

// TableName specifies the table name
func (TankerSize) TableName() string {
	return "tanker_sizes"
}
