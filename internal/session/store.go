package session

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
)

var (
	// ErrDeviceConflict means the student already holds an active session
	// on a different device. The conflict is reported, never silently
	// resolved; the old session must be terminated explicitly first.
	ErrDeviceConflict = errors.New("active session exists on another device")
	// ErrInvalidSession means no active session matches the presented
	// (student, device) pair.
	ErrInvalidSession = errors.New("session invalid or device mismatch")
)

// Store enforces the at-most-one-active-device invariant over persisted
// device sessions.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// AttemptLogin admits a device for the student. Re-login from the device
// that already holds the active session is idempotent and refreshes
// LastActivity; a different device is rejected with ErrDeviceConflict
// without touching existing state. The whole decision runs in one
// transaction so two concurrent logins cannot both observe "no active
// session" and both create one.
func (s *Store) AttemptLogin(studentID uint, deviceID, deviceInfo string) (*models.DeviceSession, error) {
	now := time.Now().UTC()
	var sess models.DeviceSession
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Same device re-login: conditional update keyed on the active row.
		res := tx.Model(&models.DeviceSession{}).
			Where("student_id_ref = ? AND device_id = ? AND is_active = ?", studentID, deviceID, true).
			Update("last_activity", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("student_id_ref = ? AND device_id = ? AND is_active = ?", studentID, deviceID, true).
				First(&sess).Error
		}

		var active int64
		if err := tx.Model(&models.DeviceSession{}).
			Where("student_id_ref = ? AND is_active = ?", studentID, true).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrDeviceConflict
		}

		sess = models.DeviceSession{
			StudentIDRef: studentID,
			DeviceID:     deviceID,
			DeviceInfo:   deviceInfo,
			IsActive:     true,
			LastActivity: now,
		}
		return tx.Create(&sess).Error
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Validate succeeds only if an active session exists for exactly this
// (student, device) pair and refreshes its LastActivity. Any mismatch
// fails closed: every active row for the student is deactivated before
// the error is returned.
func (s *Store) Validate(studentID uint, deviceID string) (*models.DeviceSession, error) {
	var sess models.DeviceSession
	err := s.DB.Where("student_id_ref = ? AND device_id = ? AND is_active = ?", studentID, deviceID, true).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if invErr := s.InvalidateAll(studentID); invErr != nil {
				return nil, invErr
			}
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if err := s.DB.Model(&sess).Update("last_activity", time.Now().UTC()).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// InvalidateAll deactivates every session the student holds. Idempotent.
func (s *Store) InvalidateAll(studentID uint) error {
	return s.DB.Model(&models.DeviceSession{}).
		Where("student_id_ref = ? AND is_active = ?", studentID, true).
		Update("is_active", false).Error
}

// OverrideLogin is the proctor-approval path: it deactivates whatever is
// active and admits the new device unconditionally, bypassing the conflict
// check. A human has vouched for the student.
func (s *Store) OverrideLogin(studentID uint, deviceID, deviceInfo string) (*models.DeviceSession, error) {
	now := time.Now().UTC()
	var sess models.DeviceSession
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DeviceSession{}).
			Where("student_id_ref = ? AND is_active = ?", studentID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		sess = models.DeviceSession{
			StudentIDRef: studentID,
			DeviceID:     deviceID,
			DeviceInfo:   deviceInfo,
			IsActive:     true,
			LastActivity: now,
		}
		return tx.Create(&sess).Error
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// HasActiveSession reports whether the student holds any active session.
func (s *Store) HasActiveSession(studentID uint) (bool, error) {
	var count int64
	err := s.DB.Model(&models.DeviceSession{}).
		Where("student_id_ref = ? AND is_active = ?", studentID, true).
		Count(&count).Error
	return count > 0, err
}
