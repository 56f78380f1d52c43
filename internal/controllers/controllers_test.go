package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/examguard/exam_manager_backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Faculty{},
		&models.Department{},
		&models.Subject{},
		&models.Student{},
		&models.DeviceSession{},
		&models.FaceVerificationIssue{},
		&models.Exam{},
		&models.ExamSession{},
		&models.ProctoringLog{},
	))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, matric string) *models.Student {
	t.Helper()
	faculty := models.Faculty{Name: "Engineering " + matric, Code: "ENG" + matric}
	require.NoError(t, db.Create(&faculty).Error)
	dept := models.Department{FacultyIDRef: faculty.ID, Name: "Computer Engineering", Code: "CEN" + matric}
	require.NoError(t, db.Create(&dept).Error)
	student := models.Student{
		MatricNumber:    matric,
		FullName:        "Ada Lovelace",
		Email:           "ada@example.edu",
		PassportPhoto:   "data:image/png;base64,xxxx",
		DepartmentIDRef: dept.ID,
	}
	require.NoError(t, db.Create(&student).Error)
	return &student
}

// setUser is a stand-in for AuthMiddleware in route tests.
func setUser(user models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user", user)
		c.Next()
	}
}

// setStudent is a stand-in for StudentAuthMiddleware in route tests.
func setStudent(student models.Student) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("student", student)
		c.Next()
	}
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
