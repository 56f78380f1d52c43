package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/fingerprint"
	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/session"
	"github.com/examguard/exam_manager_backend/internal/verification"
)

// Machine-readable error codes the login client branches on.
const (
	ErrCodeDeviceConflict           = "DEVICE_CONFLICT"
	ErrCodeFaceVerificationRequired = "FACE_VERIFICATION_REQUIRED"
)

type StudentAuthController struct {
	DB           *gorm.DB
	Store        *session.Store
	Workflow     *verification.Workflow
	Matcher      *verification.Matcher
	CookieSecure bool
}

type checkStudentRequest struct {
	MatricNumber string `json:"matric_number" binding:"required"`
}

func (sc *StudentAuthController) findStudent(matric string) (*models.Student, error) {
	var student models.Student
	err := sc.DB.Where("matric_number = ?", strings.ToUpper(strings.TrimSpace(matric))).First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// CheckStudent resolves a matric number to the student's public profile so
// the login page can show the passport photo before face capture.
func (sc *StudentAuthController) CheckStudent(c *gin.Context) {
	var req checkStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Matric number is required"})
		return
	}
	student, err := sc.findStudent(req.MatricNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Student not found. Please check your matric number."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to verify student"})
		return
	}

	type deptRow struct {
		Department string
		Faculty    string
	}
	var dr deptRow
	sc.DB.Table("departments AS d").
		Select("d.name AS department, f.name AS faculty").
		Joins("JOIN faculties f ON f.id = d.faculty_id_ref").
		Where("d.id = ?", student.DepartmentIDRef).
		Scan(&dr)

	c.JSON(http.StatusOK, gin.H{
		"student": gin.H{
			"id":             student.StudentID,
			"matric_number":  student.MatricNumber,
			"name":           student.FullName,
			"passport_photo": student.PassportPhoto,
			"department":     dr.Department,
			"faculty":        dr.Faculty,
		},
	})
}

type studentLoginRequest struct {
	MatricNumber  string `json:"matric_number" binding:"required"`
	CapturedPhoto string `json:"captured_photo"`
}

// Login runs the device-bound student login. Order matters and mirrors the
// proctoring policy: a proctor approval inside the trust window waives the
// face-capture requirement; a missing capture without approval opens (or
// coalesces into) a face-verification issue; only then is the device
// admitted or rejected.
func (sc *StudentAuthController) Login(c *gin.Context) {
	var req studentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Matric number is required"})
		return
	}

	student, err := sc.findStudent(req.MatricNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}

	now := time.Now().UTC()
	skipFaceVerification, _, err := sc.Workflow.IsCurrentlyApproved(student.ID, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}

	if req.CapturedPhoto == "" && !skipFaceVerification {
		if _, err := sc.Workflow.ReportFailure(student, "Face verification failed or not provided", ""); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{
			"message":                   "Face verification required. Your request has been sent to a proctor for review.",
			"error":                     ErrCodeFaceVerificationRequired,
			"requires_proctor_approval": true,
		})
		return
	}

	info := fingerprint.FromRequest(c.Request)
	deviceID := fingerprint.Generate(info)
	infoJSON, _ := json.Marshal(info)

	if _, err := sc.Store.AttemptLogin(student.ID, deviceID, string(infoJSON)); err != nil {
		if errors.Is(err, session.ErrDeviceConflict) {
			c.JSON(http.StatusForbidden, gin.H{
				"message":         "You are already logged in on another device. Please logout from that device first before logging in here.",
				"error":           ErrCodeDeviceConflict,
				"existing_device": true,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}

	token := session.EncodeToken(student.StudentID, deviceID, now)
	sc.setSessionCookies(c, token, deviceID)

	message := "Login successful"
	if skipFaceVerification {
		message = "Login successful (approved by proctor)"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"token":         token,
		"device_id":     deviceID,
		"student_id":    student.StudentID,
		"student_name":  student.FullName,
		"matric_number": student.MatricNumber,
		"message":       message,
	})
}

func (sc *StudentAuthController) setSessionCookies(c *gin.Context, token, deviceID string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(session.SessionCookie, token, session.CookieMaxAge, "/", "", sc.CookieSecure, true)
	c.SetCookie(session.DeviceCookie, deviceID, session.CookieMaxAge, "/", "", sc.CookieSecure, true)
}

func (sc *StudentAuthController) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(session.SessionCookie, "", -1, "/", "", sc.CookieSecure, true)
	c.SetCookie(session.DeviceCookie, "", -1, "/", "", sc.CookieSecure, true)
}

// CheckSession reports whether the presented cookies still name the active
// device. Runs behind StudentAuthMiddleware, which already did the work.
func (sc *StudentAuthController) CheckSession(c *gin.Context) {
	sVal, _ := c.Get("student")
	student := sVal.(models.Student)
	deviceID := c.GetString("deviceID")
	c.JSON(http.StatusOK, gin.H{
		"is_valid":   true,
		"student_id": student.StudentID,
		"device_id":  deviceID,
	})
}

// Logout deactivates every device session the student holds and clears the
// cookies.
func (sc *StudentAuthController) Logout(c *gin.Context) {
	sVal, _ := c.Get("student")
	student := sVal.(models.Student)
	if err := sc.Store.InvalidateAll(student.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Logout failed"})
		return
	}
	sc.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// CheckApprovalStatus lets the login page poll for a proctor decision.
func (sc *StudentAuthController) CheckApprovalStatus(c *gin.Context) {
	var req checkStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Matric number is required"})
		return
	}
	student, err := sc.findStudent(req.MatricNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to check approval status"})
		return
	}

	now := time.Now().UTC()
	approved, approvedAt, err := sc.Workflow.IsCurrentlyApproved(student.ID, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to check approval status"})
		return
	}
	pending, err := sc.Workflow.PendingIssue(student.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to check approval status"})
		return
	}

	message := "No face verification issues found."
	if approved {
		message = "Your face verification has been approved. You can now login."
	} else if pending != nil {
		message = "Your face verification request is pending proctor review."
	}
	resp := gin.H{
		"is_approved": approved,
		"is_pending":  pending != nil,
		"message":     message,
	}
	if approvedAt != nil {
		resp["approved_at"] = approvedAt
	}
	if pending != nil {
		resp["pending_since"] = pending.AttemptedAt
	}
	c.JSON(http.StatusOK, resp)
}

type reportFaceFailureRequest struct {
	MatricNumber  string `json:"matric_number" binding:"required"`
	FailureReason string `json:"failure_reason" binding:"required"`
	CapturedPhoto string `json:"captured_photo"`
}

// ReportFaceFailure records a client-side face-match failure. Repeated
// failures coalesce into the student's single PENDING issue.
func (sc *StudentAuthController) ReportFaceFailure(c *gin.Context) {
	var req reportFaceFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Matric number and failure reason are required"})
		return
	}
	student, err := sc.findStudent(req.MatricNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create face verification issue"})
		return
	}
	issue, err := sc.Workflow.ReportFailure(student, req.FailureReason, req.CapturedPhoto)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create face verification issue"})
		return
	}
	message := "Face verification issue created"
	if issue.Attempts > 1 {
		message = "Face verification issue updated"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  message,
		"issue_id": issue.ID,
		"attempts": issue.Attempts,
	})
}

type verifyFaceRequest struct {
	ReferenceDescriptor []float64 `json:"reference_descriptor" binding:"required"`
	CapturedDescriptor  []float64 `json:"captured_descriptor" binding:"required"`
}

// VerifyFace compares two face descriptors server-side through the matcher
// capability.
func (sc *StudentAuthController) VerifyFace(c *gin.Context) {
	var req verifyFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Both descriptors are required"})
		return
	}
	result, err := sc.Matcher.Compare(req.ReferenceDescriptor, req.CapturedDescriptor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	message := "Face verified"
	if !result.Match {
		message = "Face does not match the passport photo"
	}
	c.JSON(http.StatusOK, gin.H{
		"verified":   result.Match,
		"confidence": result.Confidence,
		"distance":   result.Distance,
		"message":    message,
	})
}
