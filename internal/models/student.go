package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Student struct {
	ID              uint   `gorm:"primaryKey"`
	StudentID       string `gorm:"type:uuid;uniqueIndex"`
	MatricNumber    string `gorm:"uniqueIndex"`
	FullName        string
	Email           string
	PassportPhoto   string `gorm:"type:text"`
	DepartmentIDRef uint   `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s *Student) BeforeCreate(tx *gorm.DB) (err error) {
	if s.StudentID == "" {
		s.StudentID = uuid.NewString()
	}
	return nil
}
