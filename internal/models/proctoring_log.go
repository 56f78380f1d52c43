package models

import "time"

// ProctoringLog is an append-only audit row. Rows are never updated or
// deleted once written.
type ProctoringLog struct {
	ID               uint   `gorm:"primaryKey"`
	SessionID        string `gorm:"index"`
	EventType        string `gorm:"size:32;index"`
	Details          string `gorm:"type:text"`
	ActionTaken      string `gorm:"size:32"`
	ProctorID        string
	ProctorName      string
	InfractionReason string
	CreatedAt        time.Time
}
