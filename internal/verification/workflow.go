package verification

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
)

// ApprovalWindow is the trailing trust grant after a proctor approval.
// Within it the student may log in without re-attempting face capture;
// after it they must verify again or seek re-approval.
const ApprovalWindow = 24 * time.Hour

var (
	ErrAlreadyProcessed = errors.New("face verification issue already processed")
	ErrReasonRequired   = errors.New("rejection reason is required")
)

// Workflow drives a student's face-verification issues through
// PENDING -> {APPROVED, REJECTED}. Terminal states are immutable.
type Workflow struct {
	DB *gorm.DB
}

func NewWorkflow(db *gorm.DB) *Workflow {
	return &Workflow{DB: db}
}

// ReportFailure records a failed identity check. If a PENDING issue exists
// for the student it is coalesced into: attempts incremented, reason and
// timestamp refreshed, captured photo overwritten when provided. Otherwise
// a fresh PENDING issue is created. Runs in one transaction so concurrent
// failures cannot create two PENDING rows.
func (w *Workflow) ReportFailure(student *models.Student, reason, capturedPhoto string) (*models.FaceVerificationIssue, error) {
	now := time.Now().UTC()
	var issue models.FaceVerificationIssue
	err := w.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"attempts":       gorm.Expr("attempts + 1"),
			"failure_reason": reason,
			"attempted_at":   now,
		}
		if capturedPhoto != "" {
			updates["captured_photo"] = capturedPhoto
		}
		res := tx.Model(&models.FaceVerificationIssue{}).
			Where("student_id_ref = ? AND status = ?", student.ID, models.IssueStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("student_id_ref = ? AND status = ?", student.ID, models.IssueStatusPending).
				First(&issue).Error
		}
		issue = models.FaceVerificationIssue{
			StudentIDRef:  student.ID,
			MatricNumber:  student.MatricNumber,
			FailureReason: reason,
			PassportPhoto: student.PassportPhoto,
			CapturedPhoto: capturedPhoto,
			Attempts:      1,
			Status:        models.IssueStatusPending,
			AttemptedAt:   now,
		}
		return tx.Create(&issue).Error
	})
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// Approve transitions a PENDING issue to APPROVED for the given proctor.
// The status check and the write are one conditional update, so a
// concurrent approve/reject loses cleanly with ErrAlreadyProcessed.
func (w *Workflow) Approve(issueID uint, proctorID, notes string) (*models.FaceVerificationIssue, error) {
	now := time.Now().UTC()
	var issue models.FaceVerificationIssue
	err := w.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&issue, issueID).Error; err != nil {
			return err
		}
		res := tx.Model(&models.FaceVerificationIssue{}).
			Where("id = ? AND status = ?", issueID, models.IssueStatusPending).
			Updates(map[string]any{
				"status":         models.IssueStatusApproved,
				"approved_by":    proctorID,
				"approved_at":    now,
				"approval_notes": notes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}
		return tx.First(&issue, issueID).Error
	})
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// Reject transitions a PENDING issue to REJECTED. The reason is mandatory.
// Rejection never touches device sessions.
func (w *Workflow) Reject(issueID uint, proctorID, reason string) (*models.FaceVerificationIssue, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	now := time.Now().UTC()
	var issue models.FaceVerificationIssue
	err := w.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&issue, issueID).Error; err != nil {
			return err
		}
		res := tx.Model(&models.FaceVerificationIssue{}).
			Where("id = ? AND status = ?", issueID, models.IssueStatusPending).
			Updates(map[string]any{
				"status":           models.IssueStatusRejected,
				"rejected_by":      proctorID,
				"rejected_at":      now,
				"rejection_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}
		return tx.First(&issue, issueID).Error
	})
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// IsCurrentlyApproved reports whether the student's most recent APPROVED
// issue falls inside the trust window ending at now. Returns the approval
// time when approved.
func (w *Workflow) IsCurrentlyApproved(studentID uint, now time.Time) (bool, *time.Time, error) {
	var issue models.FaceVerificationIssue
	err := w.DB.Where("student_id_ref = ? AND status = ? AND approved_at > ?",
		studentID, models.IssueStatusApproved, now.Add(-ApprovalWindow)).
		Order("approved_at DESC").
		First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, issue.ApprovedAt, nil
}

// PendingIssue returns the student's open PENDING issue, or nil.
func (w *Workflow) PendingIssue(studentID uint) (*models.FaceVerificationIssue, error) {
	var issue models.FaceVerificationIssue
	err := w.DB.Where("student_id_ref = ? AND status = ?", studentID, models.IssueStatusPending).
		Order("attempted_at DESC").
		First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &issue, nil
}
