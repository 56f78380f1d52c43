package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExamSession is one student's run of an exam. FocusLostSince and
// AudioStartedSince are the infraction clocks persisted between signal
// ticks; the evaluators themselves are stateless. FocusWarned/AudioWarned
// mark that the current infraction episode already produced a warning, so
// repeated ticks past the threshold do not inflate the counter.
type ExamSession struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"type:uuid;uniqueIndex"`
	ExamIDRef    uint   `gorm:"index"`
	StudentIDRef uint   `gorm:"index"`
	StartTime    time.Time
	EndTime      *time.Time
	Warnings     int  `gorm:"default:0"`
	IsSubmitted  bool `gorm:"index"`
	IsLoggedOut  bool `gorm:"index"`
	LogoutReason string
	LoggedOutBy  string
	LoggedOutAt  *time.Time

	FocusLostSince    *time.Time
	FocusWarned       bool
	AudioStartedSince *time.Time
	AudioWarned       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *ExamSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	return nil
}
