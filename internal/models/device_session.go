package models

import "time"

// DeviceSession binds a student to one device fingerprint. The store
// guarantees at most one IsActive=true row per student; deactivated rows
// are terminal and kept for audit (a re-login creates a new row).
type DeviceSession struct {
	ID           uint   `gorm:"primaryKey"`
	StudentIDRef uint   `gorm:"index"`
	DeviceID     string `gorm:"size:64;index"`
	DeviceInfo   string `gorm:"type:text"`
	IsActive     bool   `gorm:"index"`
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
