package database

import (
	"github.com/aquaflow/tanker-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.TankerSize{},
		&models.Pricing{},
		&models.Booking{},
	)
	if err != nil {
		return err
	}

	// Update constraint
	db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
	db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('customer', 'driver', 'admin'))`)

	db.Exec(`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_status_check`)
	db.Exec(`ALTER TABLE bookings ADD CONSTRAINT bookings_status_check CHECK (status IN ('pending', 'accepted', 'in_transit', 'delivered', 'cancelled'))`)

	// Accepting a pending order races across drivers; the partial index
	// keeps the hot lookup cheap
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_bookings_available ON bookings (scheduled_for, created_at) WHERE status = 'pending' AND driver_id IS NULL`)

	return seedReferenceData(db)
}

// seedReferenceData inserts the default tanker catalogue and pricing policy
// on a fresh database. Existing rows are never touched.
func seedReferenceData(db *gorm.DB) error {
	var sizeCount int64
	if err := db.Model(&models.TankerSize{}).Count(&sizeCount).Error; err != nil {
		return err
	}
	if sizeCount == 0 {
		sizes := []models.TankerSize{
			{Liters: 1000, BasePrice: 300, DisplayName: "1,000 L Mini", IsActive: true},
			{Liters: 3000, BasePrice: 450, DisplayName: "3,000 L Compact", IsActive: true},
			{Liters: 6000, BasePrice: 600, DisplayName: "6,000 L Standard", IsActive: true},
			{Liters: 12000, BasePrice: 1000, DisplayName: "12,000 L Jumbo", IsActive: true},
		}
		if err := db.Create(&sizes).Error; err != nil {
			return err
		}
	}

	var pricingCount int64
	if err := db.Model(&models.Pricing{}).Count(&pricingCount).Error; err != nil {
		return err
	}
	if pricingCount == 0 {
		policy := models.Pricing{
			PricePerKm:    5,
			MinimumCharge: 50,
			IsActive:      true,
		}
		if err := db.Create(&policy).Error; err != nil {
			return err
		}
	}

	return nil
}
