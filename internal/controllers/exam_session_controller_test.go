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
	"github.com/examguard/exam_manager_backend/internal/proctoring"
	"github.com/examguard/exam_manager_backend/internal/session"
)

func newExamSessionRouter(db *gorm.DB, student models.Student) (*gin.Engine, *ExamSessionController) {
	ctrl := &ExamSessionController{
		DB:    db,
		Store: session.NewStore(db),
	}
	r := gin.New()
	grp := r.Group("/api/v1", setStudent(student))
	grp.POST("/exam-sessions", ctrl.Start)
	grp.POST("/exam-sessions/:id/signals", ctrl.Signals)
	grp.POST("/exam-sessions/:id/submit", ctrl.Submit)
	return r, ctrl
}

func backdateClock(t *testing.T, db *gorm.DB, sessionID uint, column string, ago time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&models.ExamSession{}).
		Where("id = ?", sessionID).
		Update(column, time.Now().UTC().Add(-ago)).Error)
}

func TestStartResumesOpenSession(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "PHY/2024/020")
	examSession := seedExamSession(t, db, student)
	r, _ := newExamSessionRouter(db, *student)

	w := postJSON(t, r, "/api/v1/exam-sessions", gin.H{"exam_id": examSession.ExamIDRef}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, examSession.SessionID, body["session_id"])
	assert.Equal(t, true, body["resumed"])

	var count int64
	require.NoError(t, db.Model(&models.ExamSession{}).
		Where("student_id_ref = ?", student.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSignalsFocusWarnsOncePerEpisode(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "PHY/2024/021")
	examSession := seedExamSession(t, db, student)
	r, _ := newExamSessionRouter(db, *student)
	path := "/api/v1/exam-sessions/" + examSession.SessionID + "/signals"

	// First unfocused tick starts the clock; too early to warn.
	w := postJSON(t, r, path, gin.H{"is_focused": false, "audio_detected": false}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["warned"])
	assert.EqualValues(t, 0, body["warnings"])

	// Past the threshold the warning fires exactly once.
	backdateClock(t, db, examSession.ID, "focus_lost_since", 3*time.Second)
	w = postJSON(t, r, path, gin.H{"is_focused": false, "audio_detected": false}, nil)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["warned"])
	assert.EqualValues(t, 1, body["warnings"])

	w = postJSON(t, r, path, gin.H{"is_focused": false, "audio_detected": false}, nil)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["warned"])
	assert.EqualValues(t, 1, body["warnings"])

	// Regaining focus closes the episode; a fresh loss can warn again.
	w = postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": false}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = postJSON(t, r, path, gin.H{"is_focused": false, "audio_detected": false}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	backdateClock(t, db, examSession.ID, "focus_lost_since", 3*time.Second)
	w = postJSON(t, r, path, gin.H{"is_focused": false, "audio_detected": false}, nil)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["warned"])
	assert.EqualValues(t, 2, body["warnings"])

	// Focus loss never logs the student out on its own.
	var got models.ExamSession
	require.NoError(t, db.First(&got, examSession.ID).Error)
	assert.False(t, got.IsLoggedOut)

	assert.EqualValues(t, 2, logCount(t, db, proctoring.ActionWarningIssued))
}

func TestSignalsAudioWarnsThenStops(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "PHY/2024/022")
	examSession := seedExamSession(t, db, student)
	r, _ := newExamSessionRouter(db, *student)
	path := "/api/v1/exam-sessions/" + examSession.SessionID + "/signals"

	w := postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": true}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["warned"])

	backdateClock(t, db, examSession.ID, "audio_started_since", 5*time.Second)
	w = postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": true}, nil)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["warned"])
	assert.EqualValues(t, 1, body["warnings"])
	assert.Equal(t, false, body["is_logged_out"])

	// Silence resets the clock before the logout threshold.
	w = postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": false}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.ExamSession
	require.NoError(t, db.First(&got, examSession.ID).Error)
	assert.Nil(t, got.AudioStartedSince)
	assert.False(t, got.IsLoggedOut)
}

func TestSignalsSustainedAudioForcesLogout(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "PHY/2024/023")
	examSession := seedExamSession(t, db, student)
	r, ctrl := newExamSessionRouter(db, *student)
	path := "/api/v1/exam-sessions/" + examSession.SessionID + "/signals"

	_, err := ctrl.Store.AttemptLogin(student.ID, "devA", "{}")
	require.NoError(t, err)

	w := postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": true}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	backdateClock(t, db, examSession.ID, "audio_started_since", 20*time.Second)
	w = postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": true}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["is_logged_out"])
	assert.Equal(t, "audio", body["logout_reason"])

	var got models.ExamSession
	require.NoError(t, db.First(&got, examSession.ID).Error)
	assert.True(t, got.IsLoggedOut)
	assert.Equal(t, "SYSTEM", got.LoggedOutBy)
	assert.Equal(t, "audio", got.LogoutReason)

	var active int64
	require.NoError(t, db.Model(&models.DeviceSession{}).
		Where("student_id_ref = ? AND is_active = ?", student.ID, true).Count(&active).Error)
	assert.EqualValues(t, 0, active)

	assert.EqualValues(t, 1, logCount(t, db, proctoring.ActionLogoutBySystem))

	// The terminated session accepts no further signals.
	w = postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": false}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSignalsLogoutPersistenceFailureSurfaces(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "PHY/2024/027")
	examSession := seedExamSession(t, db, student)
	r, _ := newExamSessionRouter(db, *student)
	path := "/api/v1/exam-sessions/" + examSession.SessionID + "/signals"

	w := postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": true}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	backdateClock(t, db, examSession.ID, "audio_started_since", 20*time.Second)

	// Break device invalidation so the forced logout cannot complete.
	require.NoError(t, db.Migrator().DropTable(&models.DeviceSession{}))

	w = postJSON(t, r, path, gin.H{"is_focused": true, "audio_detected": true}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// The failed logout must not leave an audit row behind.
	assert.EqualValues(t, 0, logCount(t, db, proctoring.ActionLogoutBySystem))
}

func TestSubmitClosesSession(t *testing.T) {
	db := setupTestDB(t)
	student := seedStudent(t, db, "PHY/2024/024")
	examSession := seedExamSession(t, db, student)
	r, _ := newExamSessionRouter(db, *student)
	path := "/api/v1/exam-sessions/" + examSession.SessionID + "/submit"

	w := postJSON(t, r, path, gin.H{}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.ExamSession
	require.NoError(t, db.First(&got, examSession.ID).Error)
	assert.True(t, got.IsSubmitted)
	require.NotNil(t, got.EndTime)

	// A retried submit is harmless.
	w = postJSON(t, r, path, gin.H{}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Signals after submit are refused.
	w = postJSON(t, r, "/api/v1/exam-sessions/"+examSession.SessionID+"/signals",
		gin.H{"is_focused": true, "audio_detected": false}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSessionOwnershipEnforced(t *testing.T) {
	db := setupTestDB(t)
	owner := seedStudent(t, db, "PHY/2024/025")
	other := seedStudent(t, db, "PHY/2024/026")
	examSession := seedExamSession(t, db, owner)

	r, _ := newExamSessionRouter(db, *other)
	w := postJSON(t, r, "/api/v1/exam-sessions/"+examSession.SessionID+"/signals",
		gin.H{"is_focused": true, "audio_detected": false}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
