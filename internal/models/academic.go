package models

import "time"

type Faculty struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	Code        string `gorm:"uniqueIndex;size:16"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Department struct {
	ID           uint   `gorm:"primaryKey"`
	FacultyIDRef uint   `gorm:"index"`
	Name         string
	Code         string `gorm:"uniqueIndex;size:16"`
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Subject struct {
	ID              uint   `gorm:"primaryKey"`
	DepartmentIDRef uint   `gorm:"index"`
	Name            string
	Code            string `gorm:"uniqueIndex;size:16"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
