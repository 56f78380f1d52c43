package models

import "time"

const (
	IssueStatusPending  = "PENDING"
	IssueStatusApproved = "APPROVED"
	IssueStatusRejected = "REJECTED"
)

// FaceVerificationIssue tracks a failed identity check awaiting proctor
// review. Repeated failures coalesce into the single PENDING row per
// student; APPROVED/REJECTED rows are immutable history.
type FaceVerificationIssue struct {
	ID              uint   `gorm:"primaryKey"`
	StudentIDRef    uint   `gorm:"index"`
	MatricNumber    string `gorm:"index"`
	FailureReason   string
	PassportPhoto   string `gorm:"type:text"`
	CapturedPhoto   string `gorm:"type:text"`
	Attempts        int    `gorm:"default:1"`
	Status          string `gorm:"size:16;index"`
	AttemptedAt     time.Time
	ApprovedBy      string
	ApprovedAt      *time.Time
	ApprovalNotes   string
	RejectedBy      string
	RejectedAt      *time.Time
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
