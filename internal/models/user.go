package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeDriver   UserType = "driver"
	UserTypeAdmin    UserType = "admin"
)

type User struct {
	gorm.Model   // This embeds ID, CreatedAt, UpdatedAt, and DeletedAt
	Username     string `gorm:"column:username;unique;not null" json:"username"`
	Email        string `gorm:"column:email;unique;not null" json:"email"`
	Password     string `gorm:"-:migration" json:"-"` // Temporary field for password handling
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	PhoneNumber  string `gorm:"column:phone_number" json:"phoneNumber"`
	UserType     string `gorm:"column:user_type;not null" json:"userType"`

	// Saved profile address, shown to drivers when it differs from the
	// booking's delivery address
	SavedStreet   string   `gorm:"column:saved_street" json:"savedStreet"`
	SavedLandmark string   `gorm:"column:saved_landmark" json:"savedLandmark"`
	SavedLat      *float64 `gorm:"column:saved_lat" json:"savedLat,omitempty"`
	SavedLng      *float64 `gorm:"column:saved_lng" json:"savedLng,omitempty"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// HasSavedAddress reports whether the profile carries a usable saved address
func (u *User) HasSavedAddress() bool {
	return u.SavedStreet != ""
}
