package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/config"
	"github.com/examguard/exam_manager_backend/internal/models"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode,
	)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Faculty{},
		&models.Department{},
		&models.Subject{},
		&models.Student{},
		&models.DeviceSession{},
		&models.FaceVerificationIssue{},
		&models.Exam{},
		&models.ExamSession{},
		&models.ProctoringLog{},
	)
}
