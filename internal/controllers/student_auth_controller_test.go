package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/session"
	"github.com/examguard/exam_manager_backend/internal/verification"
)

func newStudentAuthRouter(db *gorm.DB) (*gin.Engine, *StudentAuthController) {
	ctrl := &StudentAuthController{
		DB:       db,
		Store:    session.NewStore(db),
		Workflow: verification.NewWorkflow(db),
		Matcher:  verification.NewMatcher(verification.DefaultMatchThreshold),
	}
	r := gin.New()
	r.POST("/api/v1/auth/login", ctrl.Login)
	r.POST("/api/v1/auth/check-approval-status", ctrl.CheckApprovalStatus)
	r.POST("/api/v1/auth/report-face-failure", ctrl.ReportFaceFailure)
	return r, ctrl
}

var deviceAHeaders = map[string]string{
	"User-Agent":         "Mozilla/5.0 (X11; Linux x86_64) LabMachine/1.0",
	"Sec-CH-UA-Platform": "Linux",
	"Sec-CH-UA":          "Chromium;v=120",
}

var deviceBHeaders = map[string]string{
	"User-Agent":         "Mozilla/5.0 (Windows NT 10.0) HomeLaptop/2.0",
	"Sec-CH-UA-Platform": "Windows",
	"Sec-CH-UA":          "Chromium;v=121",
}

func TestLoginWithPhotoSucceeds(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "CSC/2024/001")
	r, _ := newStudentAuthRouter(db)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number":  student.MatricNumber,
		"captured_photo": "data:image/jpeg;base64,abcd",
	}, deviceAHeaders)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, student.MatricNumber, body["matric_number"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["device_id"])

	cookies := w.Result().Cookies()
	names := map[string]bool{}
	for _, ck := range cookies {
		names[ck.Name] = true
		assert.True(t, ck.HttpOnly)
	}
	assert.True(t, names[session.SessionCookie])
	assert.True(t, names[session.DeviceCookie])
}

func TestLoginSecondDeviceConflicts(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "CSC/2024/002")
	r, _ := newStudentAuthRouter(db)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number":  student.MatricNumber,
		"captured_photo": "data:image/jpeg;base64,abcd",
	}, deviceAHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number":  student.MatricNumber,
		"captured_photo": "data:image/jpeg;base64,abcd",
	}, deviceBHeaders)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, ErrCodeDeviceConflict, body["error"])
	assert.Equal(t, true, body["existing_device"])

	// First device stays active and can log in again.
	w = postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number":  student.MatricNumber,
		"captured_photo": "data:image/jpeg;base64,abcd",
	}, deviceAHeaders)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginWithoutPhotoOpensIssue(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "CSC/2024/003")
	r, _ := newStudentAuthRouter(db)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number": student.MatricNumber,
	}, deviceAHeaders)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, ErrCodeFaceVerificationRequired, body["error"])
	assert.Equal(t, true, body["requires_proctor_approval"])

	var issue models.FaceVerificationIssue
	require.NoError(t, db.Where("student_id_ref = ?", student.ID).First(&issue).Error)
	assert.Equal(t, models.IssueStatusPending, issue.Status)
	assert.Equal(t, 1, issue.Attempts)

	// A retry coalesces into the same pending issue.
	w = postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number": student.MatricNumber,
	}, deviceAHeaders)
	require.Equal(t, http.StatusForbidden, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.FaceVerificationIssue{}).
		Where("student_id_ref = ?", student.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, db.Where("student_id_ref = ?", student.ID).First(&issue).Error)
	assert.Equal(t, 2, issue.Attempts)

	// No device session was created for the failed logins.
	var sessions int64
	require.NoError(t, db.Model(&models.DeviceSession{}).
		Where("student_id_ref = ?", student.ID).Count(&sessions).Error)
	assert.EqualValues(t, 0, sessions)
}

func TestLoginAfterApprovalSkipsFaceCheck(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "CSC/2024/004")
	r, ctrl := newStudentAuthRouter(db)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number": student.MatricNumber,
	}, deviceAHeaders)
	require.Equal(t, http.StatusForbidden, w.Code)

	var issue models.FaceVerificationIssue
	require.NoError(t, db.Where("student_id_ref = ?", student.ID).First(&issue).Error)
	_, err := ctrl.Workflow.Approve(issue.ID, "proctor-uuid", "verified in person")
	require.NoError(t, err)

	w = postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number": student.MatricNumber,
	}, deviceAHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "approved by proctor")
}

func TestCheckApprovalStatusLifecycle(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "CSC/2024/005")
	r, ctrl := newStudentAuthRouter(db)

	w := postJSON(t, r, "/api/v1/auth/check-approval-status", gin.H{
		"matric_number": student.MatricNumber,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["is_approved"])
	assert.Equal(t, false, body["is_pending"])

	w = postJSON(t, r, "/api/v1/auth/report-face-failure", gin.H{
		"matric_number":  student.MatricNumber,
		"failure_reason": "No face detected",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/api/v1/auth/check-approval-status", gin.H{
		"matric_number": student.MatricNumber,
	}, nil)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["is_pending"])

	var issue models.FaceVerificationIssue
	require.NoError(t, db.Where("student_id_ref = ?", student.ID).First(&issue).Error)
	_, err := ctrl.Workflow.Approve(issue.ID, "proctor-uuid", "")
	require.NoError(t, err)

	w = postJSON(t, r, "/api/v1/auth/check-approval-status", gin.H{
		"matric_number": student.MatricNumber,
	}, nil)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["is_approved"])
	assert.Equal(t, false, body["is_pending"])
}

func TestExpiredApprovalRequiresPhotoAgain(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "CSC/2024/006")
	r, _ := newStudentAuthRouter(db)

	stale := time.Now().UTC().Add(-25 * time.Hour)
	issue := models.FaceVerificationIssue{
		StudentIDRef:  student.ID,
		MatricNumber:  student.MatricNumber,
		FailureReason: "No face detected",
		Status:        models.IssueStatusApproved,
		AttemptedAt:   stale,
		ApprovedBy:    "proctor-uuid",
		ApprovedAt:    &stale,
	}
	require.NoError(t, db.Create(&issue).Error)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"matric_number": student.MatricNumber,
	}, deviceAHeaders)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, ErrCodeFaceVerificationRequired, body["error"])
}
