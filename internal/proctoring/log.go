package proctoring

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
)

const (
	EventFaceMismatch  = "FACE_MISMATCH"
	EventFocusLoss     = "FOCUS_LOSS"
	EventAudioDetected = "AUDIO_DETECTED"
	EventLogout        = "LOGOUT"

	ActionApprovedByProctor = "APPROVED_BY_PROCTOR"
	ActionRejectedByProctor = "REJECTED_BY_PROCTOR"
	ActionLogoutByProctor   = "LOGOUT_BY_PROCTOR"
	ActionLogoutBySystem    = "LOGOUT_BY_SYSTEM"
	ActionWarningIssued     = "WARNING_ISSUED"
)

// LogEntry is the input for one audit row.
type LogEntry struct {
	SessionID        string
	EventType        string
	Details          map[string]any
	ActionTaken      string
	ProctorID        string
	ProctorName      string
	InfractionReason string
}

// AppendLog writes one immutable audit row. Details are serialised to JSON
// text; a marshalling failure falls back to an empty object rather than
// dropping the entry.
func AppendLog(db *gorm.DB, entry LogEntry) error {
	details := "{}"
	if entry.Details != nil {
		if entry.Details["timestamp"] == nil {
			entry.Details["timestamp"] = time.Now().UTC().Format(time.RFC3339)
		}
		if data, err := json.Marshal(entry.Details); err == nil {
			details = string(data)
		}
	}
	row := models.ProctoringLog{
		SessionID:        entry.SessionID,
		EventType:        entry.EventType,
		Details:          details,
		ActionTaken:      entry.ActionTaken,
		ProctorID:        entry.ProctorID,
		ProctorName:      entry.ProctorName,
		InfractionReason: entry.InfractionReason,
	}
	return db.Create(&row).Error
}
