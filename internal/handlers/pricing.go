package handlers

import (
	"log"
	"strconv"

	"github.com/aquaflow/tanker-backend/internal/models"
	"github.com/aquaflow/tanker-backend/pkg/pricing"
	"github.com/aquaflow/tanker-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func requireAdmin(c *gin.Context) bool {
	if c.GetString("userType") != string(models.UserTypeAdmin) {
		c.JSON(403, gin.H{"error": "Admin access required"})
		return false
	}
	return true
}

// GetPricing returns the active pricing policy
func GetPricing(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var policy models.Pricing
		if err := db.Where("is_active = ?", true).First(&policy).Error; err != nil {
			c.JSON(404, gin.H{"error": "Pricing is not configured"})
			return
		}

		c.JSON(200, gin.H{"pricing": policy})
	}
}

type UpdatePricingInput struct {
	PricePerKm    float64 `json:"pricePerKm" binding:"required"`
	MinimumCharge float64 `json:"minimumCharge" binding:"required"`
}

// UpdatePricing replaces the active pricing policy. The old record is kept
// deactivated for audit history.
func UpdatePricing(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}
		adminId := c.GetUint("userId")

		var input UpdatePricingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		policy := pricing.Policy{
			PricePerKm:    input.PricePerKm,
			MinimumCharge: input.MinimumCharge,
		}
		if err := pricing.ValidatePolicy(policy); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if pricing.Suspicious(policy) {
			log.Printf("Suspicious pricing update by admin %d: perKm=%.2f minimum=%.2f",
				adminId, input.PricePerKm, input.MinimumCharge)
		}

		record := models.Pricing{
			PricePerKm:    input.PricePerKm,
			MinimumCharge: input.MinimumCharge,
			UpdatedBy:     adminId,
			IsActive:      true,
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Pricing{}).
				Where("is_active = ?", true).
				Update("is_active", false).Error; err != nil {
				return err
			}
			return tx.Create(&record).Error
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to update pricing"})
			return
		}

		c.JSON(200, gin.H{"pricing": record})
	}
}

type QuoteInput struct {
	TankerSizeID uint    `json:"tankerSizeId" binding:"required"`
	Lat          float64 `json:"lat" binding:"required"`
	Lng          float64 `json:"lng" binding:"required"`
}

// QuotePrice previews the price for a delivery without placing an order
func QuotePrice(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input QuoteInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
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

		c.JSON(200, gin.H{
			"quote":          quote,
			"distanceKm":     distanceKm,
			"etaMinutes":     utils.CalculateETA(distanceKm, 0),
			"formattedPrice": pricing.FormatPrice(quote.TotalPrice),
		})
	}
}

// GetTankerSizes lists the active tanker sizes, smallest first
func GetTankerSizes(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sizes []models.TankerSize
		if err := db.Where("is_active = ?", true).
			Order("liters ASC").
			Find(&sizes).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch tanker sizes"})
			return
		}

		c.JSON(200, gin.H{"tankerSizes": sizes})
	}
}

type TankerSizeInput struct {
	Liters      int     `json:"liters" binding:"required,min=100"`
	BasePrice   float64 `json:"basePrice" binding:"required,min=1"`
	DisplayName string  `json:"displayName" binding:"required"`
}

// CreateTankerSize adds a new tanker size to the catalogue
func CreateTankerSize(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}

		var input TankerSizeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		size := models.TankerSize{
			Liters:      input.Liters,
			BasePrice:   input.BasePrice,
			DisplayName: input.DisplayName,
			IsActive:    true,
		}
		if err := db.Create(&size).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create tanker size"})
			return
		}

		c.JSON(201, gin.H{"tankerSize": size})
	}
}

type UpdateTankerSizeInput struct {
	BasePrice   *float64 `json:"basePrice"`
	DisplayName *string  `json:"displayName"`
	IsActive    *bool    `json:"isActive"`
}

// UpdateTankerSize edits price, label or availability of a size
func UpdateTankerSize(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}

		sizeId, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid tanker size id"})
			return
		}

		var input UpdateTankerSizeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var size models.TankerSize
		if err := db.First(&size, sizeId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Tanker size not found"})
			return
		}

		if input.BasePrice != nil {
			if *input.BasePrice <= 0 {
				c.JSON(400, gin.H{"error": "Base price must be positive"})
				return
			}
			size.BasePrice = *input.BasePrice
		}
		if input.DisplayName != nil {
			size.DisplayName = *input.DisplayName
		}
		if input.IsActive != nil {
			size.IsActive = *input.IsActive
		}

		if err := db.Save(&size).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update tanker size"})
			return
		}

		c.JSON(200, gin.H{"tankerSize": size})
	}
}
