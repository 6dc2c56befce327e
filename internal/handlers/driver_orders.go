package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/aquaflow/tanker-backend/internal/booking"
	"github.com/aquaflow/tanker-backend/internal/gateway"
	"github.com/aquaflow/tanker-backend/internal/models"
	"github.com/aquaflow/tanker-backend/internal/ordersync"
	"github.com/aquaflow/tanker-backend/internal/services"
	"github.com/aquaflow/tanker-backend/pkg/pricing"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// parseView maps the ?view= query parameter to an order bucket
func parseView(raw string) (booking.View, bool) {
	switch booking.View(raw) {
	case booking.ViewAvailable, "":
		return booking.ViewAvailable, true
	case booking.ViewActive:
		return booking.ViewActive, true
	case booking.ViewCompleted:
		return booking.ViewCompleted, true
	}
	return "", false
}

// GetDriverOrders serves one view of the driver's order screen. The load
// path depends on what triggered it:
//
//	?cause=tab    — tab switch, cached data within TTL is served as-is
//	?cause=focus  — app foregrounded, debounced; add ?fromPayment=true
//	                after a payment flow to force the active view fresh
//	?refresh=true — explicit pull-to-refresh, always hits the store
func GetDriverOrders(registry *ordersync.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverId := c.GetUint("userId")
		view, ok := parseView(c.Query("view"))
		if !ok {
			c.JSON(400, gin.H{"error": "Unknown view: " + c.Query("view")})
			return
		}

		sess := registry.Session(driverId)
		ctx := c.Request.Context()

		var (
			orders []models.Booking
			err    error
		)
		switch c.Query("cause") {
		case "tab":
			orders, err = sess.Coordinator.LoadForTabSwitch(ctx, view)
		case "focus":
			fromPayment := c.Query("fromPayment") == "true"
			orders, err = sess.Coordinator.LoadOnFocus(ctx, view, fromPayment)
		default:
			force := c.Query("refresh") == "true"
			orders, err = sess.Coordinator.Load(ctx, view, force)
		}
		if errors.Is(err, ordersync.ErrLoadSuperseded) {
			// A newer request for this driver took over; answer from
			// whatever the cache holds and let the winner deliver the
			// fresh data
			entry, _ := sess.Cache.Get(view)
			c.JSON(200, gin.H{
				"view":       view,
				"orders":     entry.Bookings,
				"superseded": true,
			})
			return
		}
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to load orders"})
			return
		}

		var processing []uint
		for i := range orders {
			if sess.Mutations.Processing(orders[i].ID) {
				processing = append(processing, orders[i].ID)
			}
		}

		resp := gin.H{
			"view":       view,
			"orders":     orders,
			"processing": processing,
		}
		// Saved profile addresses only matter while the driver can still
		// plan the trip
		if view != booking.ViewCompleted {
			resp["addresses"] = sess.Addresses.Annotate(ctx, orders)
		}

		c.JSON(200, resp)
	}
}

// respondMutationError maps status-change failures onto HTTP statuses
func respondMutationError(c *gin.Context, err error) {
	var conflict *gateway.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(409, gin.H{
			"error":      "Order was already taken",
			"acceptedBy": conflict.AcceptedBy,
		})
	case errors.Is(err, gateway.ErrBookingConflict):
		c.JSON(409, gin.H{"error": "Order was already taken"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(409, gin.H{"error": "Order is not in the right state"})
	case errors.Is(err, ordersync.ErrMutationInFlight):
		c.JSON(409, gin.H{"error": "Order update already in progress"})
	case errors.Is(err, gateway.ErrBookingNotFound):
		c.JSON(404, gin.H{"error": "Order not found"})
	default:
		c.JSON(500, gin.H{"error": "Failed to update order"})
	}
}

// AcceptOrder claims a pending order for the driver. Exactly one driver
// wins; everyone else gets a conflict naming the winner.
func AcceptOrder(db *gorm.DB, registry *ordersync.Registry, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverId := c.GetUint("userId")
		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid order id"})
			return
		}

		var driver models.User
		if err := db.First(&driver, driverId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver not found"})
			return
		}

		sess := registry.Session(driverId)
		updated, err := sess.Mutations.Mutate(c.Request.Context(), uint(bookingId), models.BookingStatusAccepted, booking.Extra{
			DriverID:    driverId,
			DriverName:  driver.Username,
			DriverPhone: driver.PhoneNumber,
		})
		if err != nil {
			respondMutationError(c, err)
			return
		}

		hub.SendOrderClaimed(services.OrderClaimed{BookingID: updated.ID})
		hub.SendOrderStatusChanged(updated.CustomerID, services.OrderStatusChanged{
			BookingID:  updated.ID,
			Status:     string(updated.Status),
			DriverName: driver.Username,
		})
		services.PublishBookingUpdate(c.Request.Context(), updated.ID, string(updated.Status),
			booking.ViewAvailable, booking.ViewActive)

		c.JSON(200, gin.H{"booking": updated})
	}
}

// StartDelivery marks an accepted order as on its way
func StartDelivery(registry *ordersync.Registry, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverId := c.GetUint("userId")
		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid order id"})
			return
		}

		sess := registry.Session(driverId)
		updated, err := sess.Mutations.Mutate(c.Request.Context(), uint(bookingId), models.BookingStatusInTransit, booking.Extra{})
		if err != nil {
			respondMutationError(c, err)
			return
		}

		hub.SendOrderStatusChanged(updated.CustomerID, services.OrderStatusChanged{
			BookingID: updated.ID,
			Status:    string(updated.Status),
		})
		services.PublishBookingUpdate(c.Request.Context(), updated.ID, string(updated.Status), booking.ViewActive)

		c.JSON(200, gin.H{"booking": updated})
	}
}

// CompleteDelivery marks an in-transit order delivered. Accepts multipart
// form data so the driver can attach a proof-of-delivery photo.
func CompleteDelivery(registry *ordersync.Registry, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverId := c.GetUint("userId")
		bookingId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid order id"})
			return
		}

		extra := booking.Extra{
			PaymentCollected: c.PostForm("paymentCollected") == "true",
			PaymentMethod:    c.PostForm("paymentMethod"),
		}

		if file, err := c.FormFile("proofImage"); err == nil {
			url, err := services.UploadImage(file, "proofs")
			if err != nil {
				log.Printf("Proof image upload failed for booking %d: %v", bookingId, err)
			} else {
				extra.ProofImageURL = services.GetImageURL(url)
			}
		}

		sess := registry.Session(driverId)
		updated, err := sess.Mutations.Mutate(c.Request.Context(), uint(bookingId), models.BookingStatusDelivered, extra)
		if err != nil {
			respondMutationError(c, err)
			return
		}

		hub.SendOrderStatusChanged(updated.CustomerID, services.OrderStatusChanged{
			BookingID: updated.ID,
			Status:    string(updated.Status),
		})
		services.PublishBookingUpdate(c.Request.Context(), updated.ID, string(updated.Status),
			booking.ViewActive, booking.ViewCompleted)

		c.JSON(200, gin.H{"booking": updated})
	}
}

// GetDriverEarnings aggregates delivered orders over a trailing window
func GetDriverEarnings(gw gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverId := c.GetUint("userId")

		days := 7
		if raw := c.Query("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 365 {
				c.JSON(400, gin.H{"error": "days must be between 1 and 365"})
				return
			}
			days = parsed
		}
		since := time.Now().AddDate(0, 0, -days)

		delivered, err := gw.FetchForDriver(c.Request.Context(), driverId, &gateway.DriverFilter{
			Statuses:       []models.BookingStatus{models.BookingStatusDelivered},
			DeliveredSince: &since,
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch earnings"})
			return
		}

		var total float64
		for i := range delivered {
			total += delivered[i].TotalPrice
		}

		c.JSON(200, gin.H{
			"days":           days,
			"totalOrders":    len(delivered),
			"totalEarnings":  total,
			"formattedTotal": pricing.FormatPrice(total),
			"orders":         delivered,
		})
	}
}

type OnDutyInput struct {
	OnDuty *bool `json:"onDuty" binding:"required"`
}

// SetOnDuty flips the driver's availability flag. Going off duty drops the
// driver's sync session so a fresh shift starts cold.
func SetOnDuty(registry *ordersync.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverId := c.GetUint("userId")

		var input OnDutyInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := services.SetDriverOnDuty(c.Request.Context(), driverId, *input.OnDuty); err != nil {
			c.JSON(500, gin.H{"error": "Failed to update duty status"})
			return
		}

		if !*input.OnDuty {
			registry.Drop(driverId)
		}

		c.JSON(200, gin.H{"onDuty": *input.OnDuty})
	}
}

// GetOnDuty reports the driver's current availability flag
func GetOnDuty() gin.HandlerFunc {
	return func(c *gin.Context) {
		driverId := c.GetUint("userId")

		onDuty, err := services.GetDriverOnDuty(c.Request.Context(), driverId)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to read duty status"})
			return
		}

		c.JSON(200, gin.H{"onDuty": onDuty})
	}
}
