package models

import (
	"time"
)

// User is a staff account (admin or proctor). Students never get a User
// row; they authenticate through the device-session flow instead.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex"`
	FullName  string
	Email     string `gorm:"uniqueIndex"`
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
