package controllers

import (
	"time"

	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/ws"
)

// monitoringEvent builds the dashboard payload for a session change.
func monitoringEvent(session *models.ExamSession, student *models.Student, eventType, message string) ws.MonitoringPayload {
	return ws.MonitoringPayload{
		SessionID:    session.SessionID,
		StudentID:    student.StudentID,
		MatricNumber: student.MatricNumber,
		StudentName:  student.FullName,
		EventType:    eventType,
		Warnings:     session.Warnings,
		IsLoggedOut:  session.IsLoggedOut,
		LogoutReason: session.LogoutReason,
		Message:      message,
		UpdatedAt:    time.Now().UTC(),
		LoggedOutAt:  session.LoggedOutAt,
	}
}
