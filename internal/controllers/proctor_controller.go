package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/fingerprint"
	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/proctoring"
	"github.com/examguard/exam_manager_backend/internal/session"
	"github.com/examguard/exam_manager_backend/internal/verification"
	"github.com/examguard/exam_manager_backend/internal/ws"
)

type ProctorController struct {
	DB            *gorm.DB
	Store         *session.Store
	Workflow      *verification.Workflow
	MonitoringHub *ws.MonitoringHub
	StudentHub    *ws.StudentHub
}

func proctorFromContext(c *gin.Context) (models.User, bool) {
	uVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return models.User{}, false
	}
	return uVal.(models.User), true
}

// ListFaceIssues returns face-verification issues for the proctor dashboard.
// Query params: status, limit, page, sort_dir.
func (pc *ProctorController) ListFaceIssues(c *gin.Context) {
	limit := 50
	page := 1
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	sortDir := strings.ToUpper(c.DefaultQuery("sort_dir", "DESC"))
	if sortDir != "ASC" && sortDir != "DESC" {
		sortDir = "DESC"
	}

	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	base := pc.DB.Model(&models.FaceVerificationIssue{})
	switch status {
	case "":
	case models.IssueStatusPending, models.IssueStatusApproved, models.IssueStatusRejected:
		base = base.Where("status = ?", status)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid status value"})
		return
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch face verification issues"})
		return
	}

	var issues []models.FaceVerificationIssue
	listQ := pc.DB.Order("attempted_at " + sortDir)
	if status != "" {
		listQ = listQ.Where("status = ?", status)
	}
	offset := (page - 1) * limit
	if err := listQ.Offset(offset).Limit(limit).Find(&issues).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch face verification issues"})
		return
	}

	out := make([]gin.H, 0, len(issues))
	for _, issue := range issues {
		entry := gin.H{
			"id":             issue.ID,
			"matric_number":  issue.MatricNumber,
			"failure_reason": issue.FailureReason,
			"passport_photo": issue.PassportPhoto,
			"captured_photo": issue.CapturedPhoto,
			"attempts":       issue.Attempts,
			"status":         issue.Status,
			"attempted_at":   issue.AttemptedAt,
		}
		if issue.ApprovedAt != nil {
			entry["approved_by"] = issue.ApprovedBy
			entry["approved_at"] = issue.ApprovedAt
			entry["approval_notes"] = issue.ApprovalNotes
		}
		if issue.RejectedAt != nil {
			entry["rejected_by"] = issue.RejectedBy
			entry["rejected_at"] = issue.RejectedAt
			entry["rejection_reason"] = issue.RejectionReason
		}
		out = append(out, entry)
	}

	meta := gin.H{"total": total, "limit": limit, "page": page, "sort_dir": sortDir}
	if status != "" {
		meta["status"] = status
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

type approveIssueRequest struct {
	Notes string `json:"notes"`
}

// ApproveFaceIssue approves a pending issue and logs the student straight
// in on the device the approval is performed from. Approval overrides the
// single-device restriction.
func (pc *ProctorController) ApproveFaceIssue(c *gin.Context) {
	proctor, ok := proctorFromContext(c)
	if !ok {
		return
	}

	issueID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Issue ID is required"})
		return
	}

	var req approveIssueRequest
	_ = c.ShouldBindJSON(&req)

	issue, err := pc.Workflow.Approve(uint(issueID), proctor.UserID, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Face verification issue not found"})
		case errors.Is(err, verification.ErrAlreadyProcessed):
			c.JSON(http.StatusBadRequest, gin.H{"message": "This issue has already been processed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to approve face verification"})
		}
		return
	}

	var student models.Student
	if err := pc.DB.First(&student, issue.StudentIDRef).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to approve face verification"})
		return
	}

	info := fingerprint.FromRequest(c.Request)
	deviceID := fingerprint.Generate(info)
	infoJSON, _ := json.Marshal(info)
	if _, err := pc.Store.OverrideLogin(student.ID, deviceID, string(infoJSON)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to approve face verification"})
		return
	}
	token := session.EncodeToken(student.StudentID, deviceID, time.Now().UTC())

	_ = proctoring.AppendLog(pc.DB, proctoring.LogEntry{
		EventType:   proctoring.EventFaceMismatch,
		ActionTaken: proctoring.ActionApprovedByProctor,
		ProctorID:   proctor.UserID,
		ProctorName: proctor.FullName,
		Details: map[string]any{
			"action":        "PROCTOR_APPROVAL",
			"issue_id":      issue.ID,
			"matric_number": issue.MatricNumber,
			"notes":         req.Notes,
		},
		InfractionReason: fmt.Sprintf("Face verification approved by proctor. Original reason: %s", issue.FailureReason),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Student face verification approved and logged in successfully",
		"student": gin.H{
			"id":            student.StudentID,
			"matric_number": student.MatricNumber,
			"name":          student.FullName,
		},
		"session_token": token,
	})
}

type rejectIssueRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectFaceIssue rejects a pending issue. A non-empty reason is mandatory.
func (pc *ProctorController) RejectFaceIssue(c *gin.Context) {
	proctor, ok := proctorFromContext(c)
	if !ok {
		return
	}

	issueID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Issue ID is required"})
		return
	}

	var req rejectIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Rejection reason is required"})
		return
	}

	issue, err := pc.Workflow.Reject(uint(issueID), proctor.UserID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Face verification issue not found"})
		case errors.Is(err, verification.ErrAlreadyProcessed):
			c.JSON(http.StatusBadRequest, gin.H{"message": "This issue has already been processed"})
		case errors.Is(err, verification.ErrReasonRequired):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Rejection reason is required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to reject face verification"})
		}
		return
	}

	_ = proctoring.AppendLog(pc.DB, proctoring.LogEntry{
		EventType:   proctoring.EventFaceMismatch,
		ActionTaken: proctoring.ActionRejectedByProctor,
		ProctorID:   proctor.UserID,
		ProctorName: proctor.FullName,
		Details: map[string]any{
			"action":        "PROCTOR_REJECTION",
			"issue_id":      issue.ID,
			"matric_number": issue.MatricNumber,
			"reason":        issue.RejectionReason,
		},
		InfractionReason: issue.RejectionReason,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Face verification rejected",
		"issue": gin.H{
			"id":               issue.ID,
			"status":           issue.Status,
			"rejection_reason": issue.RejectionReason,
		},
	})
}

// ActiveSessions lists unsubmitted exam sessions for the monitoring
// dashboard, logged-out ones included, with the seconds each has left.
func (pc *ProctorController) ActiveSessions(c *gin.Context) {
	type sessionRow struct {
		ID           uint
		SessionID    string
		StartTime    time.Time
		Warnings     int
		IsLoggedOut  bool
		LogoutReason string
		StudentID    string
		MatricNumber string
		StudentName  string
		ExamID       uint
		ExamTitle    string
		Duration     int
		SubjectName  string
	}
	var rows []sessionRow
	err := pc.DB.Table("exam_sessions AS es").
		Select(`es.id, es.session_id, es.start_time, es.warnings, es.is_logged_out, es.logout_reason,
			s.student_id AS student_id, s.matric_number, s.full_name AS student_name,
			e.id AS exam_id, e.title AS exam_title, e.duration_minutes AS duration, sub.name AS subject_name`).
		Joins("JOIN students s ON s.id = es.student_id_ref").
		Joins("JOIN exams e ON e.id = es.exam_id_ref").
		Joins("JOIN subjects sub ON sub.id = e.subject_id_ref").
		Where("es.is_submitted = ?", false).
		Order("es.start_time DESC").
		Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch active sessions"})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		elapsed := int(now.Sub(row.StartTime).Seconds())
		remaining := row.Duration*60 - elapsed
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, gin.H{
			"id": row.SessionID,
			"student": gin.H{
				"id":            row.StudentID,
				"matric_number": row.MatricNumber,
				"name":          row.StudentName,
			},
			"exam": gin.H{
				"id":      row.ExamID,
				"title":   row.ExamTitle,
				"subject": row.SubjectName,
			},
			"start_time":     row.StartTime,
			"warnings":       row.Warnings,
			"is_logged_out":  row.IsLoggedOut,
			"logout_reason":  row.LogoutReason,
			"time_remaining": remaining,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
}

type logoutStudentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// LogoutStudent force-terminates an exam session. The target student is
// resolved from the session row itself, so a session/student mismatch
// cannot be expressed through the request. An already-terminated session
// is rejected without writing an audit row.
func (pc *ProctorController) LogoutStudent(c *gin.Context) {
	proctor, ok := proctorFromContext(c)
	if !ok {
		return
	}

	sessionID := c.Param("id")
	var req logoutStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Reason is required"})
		return
	}
	reason := strings.TrimSpace(req.Reason)

	var examSession models.ExamSession
	if err := pc.DB.Where("session_id = ?", sessionID).First(&examSession).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Exam session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to logout student"})
		return
	}

	var student models.Student
	if err := pc.DB.First(&student, examSession.StudentIDRef).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to logout student"})
		return
	}

	now := time.Now().UTC()
	// Conditional update so a concurrent system logout cannot double-log.
	res := pc.DB.Model(&models.ExamSession{}).
		Where("id = ? AND is_logged_out = ? AND is_submitted = ?", examSession.ID, false, false).
		Updates(map[string]any{
			"is_logged_out": true,
			"logout_reason": reason,
			"logged_out_by": proctor.UserID,
			"logged_out_at": now,
			"end_time":      now,
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to logout student"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Student is already logged out"})
		return
	}

	examSession.IsLoggedOut = true
	examSession.LogoutReason = reason
	examSession.LoggedOutBy = proctor.UserID
	examSession.LoggedOutAt = &now
	examSession.EndTime = &now

	_ = proctoring.AppendLog(pc.DB, proctoring.LogEntry{
		SessionID:   examSession.SessionID,
		EventType:   proctoring.EventLogout,
		ActionTaken: proctoring.ActionLogoutByProctor,
		ProctorID:   proctor.UserID,
		ProctorName: proctor.FullName,
		Details: map[string]any{
			"reason":         reason,
			"proctor_action": true,
			"matric_number":  student.MatricNumber,
		},
		InfractionReason: reason,
	})

	if err := pc.Store.InvalidateAll(student.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to logout student"})
		return
	}

	pc.StudentHub.Notify(student.StudentID, ws.StudentMessage{
		Type:    "force_logout",
		Message: proctoring.LogoutMessage("proctor"),
		Reason:  reason,
	})
	pc.MonitoringHub.Broadcast(monitoringEvent(&examSession, &student, proctoring.EventLogout, reason))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Student has been logged out successfully",
		"session": gin.H{
			"id":            examSession.SessionID,
			"student_id":    student.StudentID,
			"is_logged_out": true,
			"logout_reason": reason,
		},
	})
}

// ListLogs returns the proctoring audit trail, newest first. Query params:
// session_id, event_type, limit, page.
func (pc *ProctorController) ListLogs(c *gin.Context) {
	limit := 100
	page := 1
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	sessionID := strings.TrimSpace(c.Query("session_id"))
	eventType := strings.ToUpper(strings.TrimSpace(c.Query("event_type")))

	base := pc.DB.Model(&models.ProctoringLog{})
	if sessionID != "" {
		base = base.Where("session_id = ?", sessionID)
	}
	if eventType != "" {
		base = base.Where("event_type = ?", eventType)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch proctoring logs"})
		return
	}

	var logs []models.ProctoringLog
	listQ := pc.DB.Order("created_at DESC")
	if sessionID != "" {
		listQ = listQ.Where("session_id = ?", sessionID)
	}
	if eventType != "" {
		listQ = listQ.Where("event_type = ?", eventType)
	}
	offset := (page - 1) * limit
	if err := listQ.Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch proctoring logs"})
		return
	}

	out := make([]gin.H, 0, len(logs))
	for _, entry := range logs {
		var details map[string]any
		if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
			details = map[string]any{}
		}
		out = append(out, gin.H{
			"id":                entry.ID,
			"session_id":        entry.SessionID,
			"event_type":        entry.EventType,
			"details":           details,
			"action_taken":      entry.ActionTaken,
			"proctor_id":        entry.ProctorID,
			"proctor_name":      entry.ProctorName,
			"infraction_reason": entry.InfractionReason,
			"created_at":        entry.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": out,
		"meta": gin.H{"total": total, "limit": limit, "page": page},
	})
}
