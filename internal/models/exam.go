package models

import "time"

type Exam struct {
	ID              uint `gorm:"primaryKey"`
	SubjectIDRef    uint `gorm:"index"`
	Title           string
	DurationMinutes int
	StartTime       time.Time
	EndTime         time.Time
	AllowCalculator bool `gorm:"default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
