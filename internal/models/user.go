package models

import "strings"

type User struct {
	BaseModel
	Username     string `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Email        string `gorm:"size:254;not null;uniqueIndex" json:"email"`
	FirstName    string `gorm:"size:150" json:"first_name"`
	LastName     string `gorm:"size:150" json:"last_name"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsStaff      bool   `gorm:"not null" json:"is_staff"`
	IsActive     bool   `gorm:"not null" json:"is_active"`
	// DeviceEndpoint is the SNS endpoint ARN registered by the mobile app, if any.
	DeviceEndpoint string `gorm:"size:255" json:"-"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}
