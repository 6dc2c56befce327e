package handlers

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/gateway"
	"github.com/aquaflow/tanker-backend/internal/models"
	"github.com/aquaflow/tanker-backend/internal/services"
	"github.com/aquaflow/tanker-backend/pkg/pricing"
	"github.com/aquaflow/tanker-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateBookingInput struct {
	TankerSizeID uint       `json:"tankerSizeId" binding:"required"`
	Street       string     `json:"street" binding:"required"`
	Landmark     string     `json:"landmark"`
	Lat          float64    `json:"lat" binding:"required"`
	Lng          float64    `json:"lng" binding:"required"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

func envFloat(key string, fallback float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

// depotConfig returns the filling-station location and service radius
func depotConfig() (lat, lng, radiusKm float64) {
	lat = envFloat("DEPOT_LAT", 17.3850)
	lng = envFloat("DEPOT_LNG", 78.4867)
	radiusKm = envFloat("SERVICE_RADIUS_KM", 30)
	return
}

// CreateBooking places a new water delivery order. The price is always
// computed server-side from the active pricing policy; client-supplied
// amounts are never trusted.
func CreateBooking(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId := c.GetUint("userId")

		var input CreateBookingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.ScheduledFor != nil && input.ScheduledFor.Before(time.Now()) {
			c.JSON(400, gin.H{"error": "Scheduled time must be in the future"})
			return
		}

		depotLat, depotLng, radiusKm := depotConfig()
		if !utils.IsWithinRadius(depotLat, depotLng, input.Lat, input.Lng, radiusKm) {
			c.JSON(400, gin.H{"error": "Delivery location is outside the service area"})
			return
		}

		var size models.TankerSize
		if err := db.Where("is_active = ?", true).First(&size, input.TankerSizeID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Tanker size not found"})
			return
		}

		var policy models.Pricing
		if err := db.Where("is_active = ?", true).First(&policy).Error; err != nil {
			c.JSON(500, gin.H{"error": "Pricing is not configured"})
			return
		}

		distanceKm := utils.HaversineDistance(depotLat, depotLng, input.Lat, input.Lng)
		quote := pricing.Calculate(size.BasePrice, distanceKm, pricing.Policy{
			PricePerKm:    policy.PricePerKm,
			MinimumCharge: policy.MinimumCharge,
		})

		order := models.Booking{
			CustomerID:       customerId,
			TankerSizeID:     size.ID,
			BasePrice:        quote.BasePrice,
			DistanceCharge:   quote.DistanceCharge,
			TotalPrice:       quote.TotalPrice,
			DeliveryStreet:   input.Street,
			DeliveryLandmark: input.Landmark,
			DeliveryLat:      input.Lat,
			DeliveryLng:      input.Lng,
			DistanceKm:       distanceKm,
			ScheduledFor:     input.ScheduledFor,
			Status:           models.BookingStatusPending,
			CanCancel:        true,
		}

		if err := db.Create(&order).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create booking"})
			return
		}

		hub.SendOrderAvailable(services.OrderAvailable{
			BookingID:    order.ID,
			TankerLiters: size.Liters,
			TotalPrice:   order.TotalPrice,
			DistanceKm:   order.DistanceKm,
			Street:       order.DeliveryStreet,
			Immediate:    order.Immediate(),
		})
		// Best effort: local drivers already got the websocket push,
		// peers catch up on TTL expiry at worst
		services.PublishBookingUpdate(c.Request.Context(), order.ID, string(order.Status), booking.ViewAvailable)

		c.JSON(201, gin.H{
			"booking":        order,
			"formattedPrice": pricing.FormatPrice(order.TotalPrice),
		})
	}
}

// GetCustomerBookings lists the customer's own orders, newest first
func GetCustomerBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId := c.GetUint("userId")

		var bookings []models.Booking
		if err := db.Preload("Driver").Preload("TankerSize").
			Where("customer_id = ?", customerId).
			Order("created_at DESC").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, gin.H{"bookings": bookings})
	}
}

// GetBooking returns a single order owned by the customer
func GetBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId := c.GetUint("userId")
		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking id"})
			return
		}

		var order models.Booking
		if err := db.Preload("Driver").Preload("TankerSize").
			Where("id = ? AND customer_id = ?", bookingId, customerId).
			First(&order).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		c.JSON(200, gin.H{"booking": order})
	}
}

type CancelBookingInput struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelBooking cancels a pending order. Once a driver has accepted, the
// order can no longer be cancelled.
func CancelBooking(db *gorm.DB, gw gateway.Gateway, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId := c.GetUint("userId")
		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking id"})
			return
		}

		var order models.Booking
		if err := db.Where("id = ? AND customer_id = ?", bookingId, customerId).
			First(&order).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		var input CancelBookingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		updated, err := gw.UpdateStatus(c.Request.Context(), uint(bookingId), models.BookingStatusCancelled, booking.Extra{
			CancellationReason: input.Reason,
		})
		switch {
		case err == nil:
		case errors.Is(err, gateway.ErrBookingNotFound):
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		case errors.Is(err, gateway.ErrBookingConflict), errors.Is(err, booking.ErrInvalidTransition):
			c.JSON(409, gin.H{"error": "Booking can no longer be cancelled"})
			return
		default:
			c.JSON(500, gin.H{"error": "Failed to cancel booking"})
			return
		}

		// Pull the order off every driver's available list
		hub.SendOrderClaimed(services.OrderClaimed{BookingID: updated.ID})
		services.PublishBookingUpdate(c.Request.Context(), updated.ID, string(updated.Status), booking.ViewAvailable)

		c.JSON(200, gin.H{"booking": updated})
	}
}
