package handlers

import (
	"github.com/aquaflow/tanker-backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetProfile retrieves the user's profile
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		c.JSON(200, gin.H{
			"id":            user.ID,
			"email":         user.Email,
			"username":      user.Username,
			"phoneNumber":   user.PhoneNumber,
			"userType":      user.UserType,
			"savedStreet":   user.SavedStreet,
			"savedLandmark": user.SavedLandmark,
			"savedLat":      user.SavedLat,
			"savedLng":      user.SavedLng,
		})
	}
}

// UpdateProfile updates the user's profile information
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Username      *string  `json:"username"`
			PhoneNumber   *string  `json:"phoneNumber"`
			SavedStreet   *string  `json:"savedStreet"`
			SavedLandmark *string  `json:"savedLandmark"`
			SavedLat      *float64 `json:"savedLat"`
			SavedLng      *float64 `json:"savedLng"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		// Update fields individually to handle empty strings properly
		if input.Username != nil {
			user.Username = *input.Username
		}
		if input.PhoneNumber != nil {
			user.PhoneNumber = *input.PhoneNumber
		}
		if input.SavedStreet != nil {
			user.SavedStreet = *input.SavedStreet
		}
		if input.SavedLandmark != nil {
			user.SavedLandmark = *input.SavedLandmark
		}
		if input.SavedLat != nil {
			user.SavedLat = input.SavedLat
		}
		if input.SavedLng != nil {
			user.SavedLng = input.SavedLng
		}

		// Use Save() instead of Updates() to persist all fields including empty strings
		if err := db.Save(&user).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update profile"})
			return
		}

		c.JSON(200, gin.H{
			"id":            user.ID,
			"email":         user.Email,
			"username":      user.Username,
			"phoneNumber":   user.PhoneNumber,
			"userType":      user.UserType,
			"savedStreet":   user.SavedStreet,
			"savedLandmark": user.SavedLandmark,
			"savedLat":      user.SavedLat,
			"savedLng":      user.SavedLng,
		})
	}
}
