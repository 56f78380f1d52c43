package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/examguard/exam_manager_backend/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.DeviceSession{}))
	return NewStore(db)
}

func activeCount(t *testing.T, s *Store, studentID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB.Model(&models.DeviceSession{}).
		Where("student_id_ref = ? AND is_active = ?", studentID, true).
		Count(&n).Error)
	return n
}

func TestAttemptLoginCreatesSession(t *testing.T) {
	s := setupStore(t)
	sess, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)
	assert.True(t, sess.IsActive)
	assert.Equal(t, "devA", sess.DeviceID)
	assert.EqualValues(t, 1, activeCount(t, s, 1))
}

func TestAttemptLoginSameDeviceIdempotent(t *testing.T) {
	s := setupStore(t)
	first, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)

	second, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, activeCount(t, s, 1))
}

func TestAttemptLoginSecondDeviceConflicts(t *testing.T) {
	s := setupStore(t)
	_, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)

	_, err = s.AttemptLogin(1, "devB", "{}")
	assert.ErrorIs(t, err, ErrDeviceConflict)

	// Existing state untouched.
	var sess models.DeviceSession
	require.NoError(t, s.DB.Where("student_id_ref = ? AND is_active = ?", 1, true).First(&sess).Error)
	assert.Equal(t, "devA", sess.DeviceID)
	assert.EqualValues(t, 1, activeCount(t, s, 1))
}

func TestAttemptLoginIndependentStudents(t *testing.T) {
	s := setupStore(t)
	_, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)
	_, err = s.AttemptLogin(2, "devA", "{}")
	require.NoError(t, err)
	assert.EqualValues(t, 1, activeCount(t, s, 1))
	assert.EqualValues(t, 1, activeCount(t, s, 2))
}

func TestValidateFailsClosed(t *testing.T) {
	s := setupStore(t)
	_, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)

	// Wrong device: validation fails and the stale active row is revoked.
	_, err = s.Validate(1, "devB")
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.EqualValues(t, 0, activeCount(t, s, 1))

	// The original device is locked out too now.
	_, err = s.Validate(1, "devA")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestValidateMatchingDevice(t *testing.T) {
	s := setupStore(t)
	created, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)

	got, err := s.Validate(1, "devA")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.False(t, got.LastActivity.Before(created.LastActivity))
}

func TestInvalidateAllIdempotent(t *testing.T) {
	s := setupStore(t)
	_, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)

	require.NoError(t, s.InvalidateAll(1))
	require.NoError(t, s.InvalidateAll(1))
	assert.EqualValues(t, 0, activeCount(t, s, 1))
}

func TestOverrideLoginBypassesConflict(t *testing.T) {
	s := setupStore(t)
	_, err := s.AttemptLogin(1, "devA", "{}")
	require.NoError(t, err)

	sess, err := s.OverrideLogin(1, "devB", "{}")
	require.NoError(t, err)
	assert.Equal(t, "devB", sess.DeviceID)
	assert.EqualValues(t, 1, activeCount(t, s, 1))

	// devA is gone for good; a new session row exists for devB only.
	_, err = s.Validate(1, "devB")
	require.NoError(t, err)
}

func TestSingleActiveDeviceInvariant(t *testing.T) {
	s := setupStore(t)
	_, err := s.AttemptLogin(7, "devA", "{}")
	require.NoError(t, err)
	_, _ = s.AttemptLogin(7, "devB", "{}")
	_, _ = s.AttemptLogin(7, "devA", "{}")
	_, err = s.OverrideLogin(7, "devC", "{}")
	require.NoError(t, err)
	require.NoError(t, s.InvalidateAll(7))
	_, err = s.AttemptLogin(7, "devD", "{}")
	require.NoError(t, err)

	assert.EqualValues(t, 1, activeCount(t, s, 7))
}
