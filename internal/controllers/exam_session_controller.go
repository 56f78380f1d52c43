package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/proctoring"
	"github.com/examguard/exam_manager_backend/internal/session"
	"github.com/examguard/exam_manager_backend/internal/ws"
)

type ExamSessionController struct {
	DB            *gorm.DB
	Store         *session.Store
	MonitoringHub *ws.MonitoringHub
	StudentHub    *ws.StudentHub
}

type startSessionRequest struct {
	ExamID uint `json:"exam_id" binding:"required"`
}

// Start creates an exam session, or resumes the student's open session for
// the same exam so a page reload does not restart the clock.
func (ec *ExamSessionController) Start(c *gin.Context) {
	sVal, _ := c.Get("student")
	student := sVal.(models.Student)

	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Exam ID is required"})
		return
	}

	var exam models.Exam
	if err := ec.DB.First(&exam, req.ExamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Exam not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to start exam session"})
		return
	}

	now := time.Now().UTC()
	if now.Before(exam.StartTime) {
		c.JSON(http.StatusForbidden, gin.H{"message": "This exam has not started yet"})
		return
	}
	if now.After(exam.EndTime) {
		c.JSON(http.StatusForbidden, gin.H{"message": "This exam has ended"})
		return
	}

	var examSession models.ExamSession
	err := ec.DB.Where(
		"exam_id_ref = ? AND student_id_ref = ? AND is_submitted = ? AND is_logged_out = ?",
		exam.ID, student.ID, false, false,
	).First(&examSession).Error
	resumed := err == nil
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to start exam session"})
			return
		}
		examSession = models.ExamSession{
			ExamIDRef:    exam.ID,
			StudentIDRef: student.ID,
			StartTime:    now,
		}
		if err := ec.DB.Create(&examSession).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to start exam session"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":       examSession.SessionID,
		"exam_id":          exam.ID,
		"exam_title":       exam.Title,
		"duration_minutes": exam.DurationMinutes,
		"start_time":       examSession.StartTime,
		"warnings":         examSession.Warnings,
		"resumed":          resumed,
		"allow_calculator": exam.AllowCalculator,
	})
}

type signalsRequest struct {
	IsFocused     *bool `json:"is_focused" binding:"required"`
	AudioDetected *bool `json:"audio_detected" binding:"required"`
}

// Signals is the proctoring tick. The client posts its current focus and
// audio state; the server keeps the infraction clocks and decides warnings
// and forced logouts, so a frozen or tampered client cannot suppress
// escalation by withholding ticks.
func (ec *ExamSessionController) Signals(c *gin.Context) {
	sVal, _ := c.Get("student")
	student := sVal.(models.Student)

	var req signalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "is_focused and audio_detected are required"})
		return
	}

	examSession, ok := ec.loadOwnSession(c, &student)
	if !ok {
		return
	}
	if examSession.IsSubmitted || examSession.IsLoggedOut {
		c.JSON(http.StatusConflict, gin.H{
			"message":       "This exam session is no longer active",
			"is_logged_out": examSession.IsLoggedOut,
			"logout_reason": examSession.LogoutReason,
		})
		return
	}

	now := time.Now().UTC()
	updates := map[string]any{}
	var messages []string
	warned := false

	focus := proctoring.EvaluateFocus(*req.IsFocused, examSession.FocusLostSince, now)
	if *req.IsFocused {
		if examSession.FocusLostSince != nil || examSession.FocusWarned {
			updates["focus_lost_since"] = nil
			updates["focus_warned"] = false
		}
		examSession.FocusLostSince = nil
		examSession.FocusWarned = false
	} else {
		updates["focus_lost_since"] = focus.FocusLostSince
		examSession.FocusLostSince = focus.FocusLostSince
		if focus.ShouldWarn && !examSession.FocusWarned {
			examSession.Warnings++
			examSession.FocusWarned = true
			updates["warnings"] = examSession.Warnings
			updates["focus_warned"] = true
			warned = true
			messages = append(messages, proctoring.FocusWarningMessage())
			ec.recordWarning(examSession, &student, proctoring.EventFocusLoss, proctoring.FocusWarningMessage())
		}
	}

	audio := proctoring.EvaluateAudio(*req.AudioDetected, examSession.AudioStartedSince, now)
	if !*req.AudioDetected {
		if examSession.AudioStartedSince != nil || examSession.AudioWarned {
			updates["audio_started_since"] = nil
			updates["audio_warned"] = false
		}
		examSession.AudioStartedSince = nil
		examSession.AudioWarned = false
	} else {
		updates["audio_started_since"] = audio.AudioStartedSince
		examSession.AudioStartedSince = audio.AudioStartedSince
		if audio.ShouldWarn && !examSession.AudioWarned && !audio.ShouldLogout {
			examSession.Warnings++
			examSession.AudioWarned = true
			updates["warnings"] = examSession.Warnings
			updates["audio_warned"] = true
			warned = true
			messages = append(messages, proctoring.AudioWarningMessage())
			ec.recordWarning(examSession, &student, proctoring.EventAudioDetected, proctoring.AudioWarningMessage())
		}
	}

	if audio.ShouldLogout {
		if err := ec.systemLogout(examSession, &student, "audio", now, updates); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to terminate exam session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"warnings":      examSession.Warnings,
			"is_logged_out": true,
			"logout_reason": "audio",
			"message":       proctoring.LogoutMessage("audio"),
		})
		return
	}

	if len(updates) > 0 {
		if err := ec.DB.Model(&models.ExamSession{}).Where("id = ?", examSession.ID).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to record signals"})
			return
		}
	}

	resp := gin.H{
		"warnings":      examSession.Warnings,
		"is_logged_out": false,
		"warned":        warned,
	}
	if len(messages) > 0 {
		resp["messages"] = messages
	}
	c.JSON(http.StatusOK, resp)
}

// Submit closes the session normally. Already-closed sessions report their
// state instead of erroring, so a retried submit is harmless.
func (ec *ExamSessionController) Submit(c *gin.Context) {
	sVal, _ := c.Get("student")
	student := sVal.(models.Student)

	examSession, ok := ec.loadOwnSession(c, &student)
	if !ok {
		return
	}
	if examSession.IsSubmitted {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Exam already submitted"})
		return
	}
	if examSession.IsLoggedOut {
		c.JSON(http.StatusConflict, gin.H{
			"message":       "This session was terminated and cannot be submitted",
			"logout_reason": examSession.LogoutReason,
		})
		return
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"is_submitted": true,
		"end_time":     now,
	}
	if err := ec.DB.Model(&models.ExamSession{}).Where("id = ?", examSession.ID).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to submit exam"})
		return
	}
	examSession.IsSubmitted = true
	examSession.EndTime = &now

	ec.MonitoringHub.Broadcast(monitoringEvent(examSession, &student, "SUBMITTED", "Exam submitted"))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Exam submitted successfully"})
}

func (ec *ExamSessionController) loadOwnSession(c *gin.Context, student *models.Student) (*models.ExamSession, bool) {
	sessionID := c.Param("id")
	var examSession models.ExamSession
	err := ec.DB.Where("session_id = ?", sessionID).First(&examSession).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Exam session not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load exam session"})
		return nil, false
	}
	if examSession.StudentIDRef != student.ID {
		c.JSON(http.StatusForbidden, gin.H{"message": "This session does not belong to you"})
		return nil, false
	}
	return &examSession, true
}

func (ec *ExamSessionController) recordWarning(examSession *models.ExamSession, student *models.Student, eventType, message string) {
	// An audit write failure must not block the warning itself.
	_ = proctoring.AppendLog(ec.DB, proctoring.LogEntry{
		SessionID:   examSession.SessionID,
		EventType:   eventType,
		ActionTaken: proctoring.ActionWarningIssued,
		Details: map[string]any{
			"matric_number": student.MatricNumber,
			"warnings":      examSession.Warnings,
		},
	})
	ec.StudentHub.Notify(student.StudentID, ws.StudentMessage{
		Type:     "warning",
		Message:  message,
		Warnings: examSession.Warnings,
	})
	ec.MonitoringHub.Broadcast(monitoringEvent(examSession, student, eventType, message))
}

func (ec *ExamSessionController) systemLogout(examSession *models.ExamSession, student *models.Student, reason string, now time.Time, updates map[string]any) error {
	examSession.IsLoggedOut = true
	examSession.LogoutReason = reason
	examSession.LoggedOutBy = "SYSTEM"
	examSession.LoggedOutAt = &now

	updates["is_logged_out"] = true
	updates["logout_reason"] = reason
	updates["logged_out_by"] = "SYSTEM"
	updates["logged_out_at"] = now
	if err := ec.DB.Model(&models.ExamSession{}).Where("id = ?", examSession.ID).Updates(updates).Error; err != nil {
		return err
	}

	if err := ec.Store.InvalidateAll(student.ID); err != nil {
		return err
	}

	// The audit append stays best-effort, same as recordWarning.
	_ = proctoring.AppendLog(ec.DB, proctoring.LogEntry{
		SessionID:        examSession.SessionID,
		EventType:        proctoring.EventLogout,
		ActionTaken:      proctoring.ActionLogoutBySystem,
		InfractionReason: reason,
		Details: map[string]any{
			"matric_number": student.MatricNumber,
			"warnings":      examSession.Warnings,
		},
	})

	ec.StudentHub.Notify(student.StudentID, ws.StudentMessage{
		Type:    "force_logout",
		Message: proctoring.LogoutMessage(reason),
		Reason:  reason,
	})
	ec.MonitoringHub.Broadcast(monitoringEvent(examSession, student, proctoring.EventLogout, proctoring.LogoutMessage(reason)))
	return nil
}
