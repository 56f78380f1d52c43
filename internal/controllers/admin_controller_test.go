package controllers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
)

func newAdminRouter(db *gorm.DB) *gin.Engine {
	ctrl := &AdminController{DB: db}
	r := gin.New()
	r.POST("/api/v1/admin/students/import", ctrl.ImportStudents)
	return r
}

func seedDepartment(t *testing.T, db *gorm.DB, code string) *models.Department {
	t.Helper()
	faculty := models.Faculty{Name: "Science " + code, Code: "SCI" + code}
	require.NoError(t, db.Create(&faculty).Error)
	dept := models.Department{FacultyIDRef: faculty.ID, Name: "Computer Science", Code: code}
	require.NoError(t, db.Create(&dept).Error)
	return &dept
}

func postCSV(t *testing.T, r *gin.Engine, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestImportStudentsStripsHeaderBOM(t *testing.T) {
	db := setupTestDB(t)
	seedDepartment(t, db, "CSC")
	r := newAdminRouter(db)

	// Excel exports prepend a UTF-8 BOM and use CRLF line endings.
	csvData := append([]byte{0xEF, 0xBB, 0xBF},
		[]byte("matric_number,full_name,department_code\r\ncsc/2024/001,Grace Hopper,csc\r\n")...)

	w := postCSV(t, r, "/api/v1/admin/students/import", "roster.csv", csvData)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["total_rows"])
	assert.EqualValues(t, 1, summary["inserted"])
	assert.EqualValues(t, 0, summary["failed"])

	var student models.Student
	require.NoError(t, db.Where("matric_number = ?", "CSC/2024/001").First(&student).Error)
	assert.Equal(t, "Grace Hopper", student.FullName)
}

func TestImportStudentsReportsRowFailures(t *testing.T) {
	db := setupTestDB(t)
	seedDepartment(t, db, "EEE")
	r := newAdminRouter(db)

	csvData := []byte("matric_number,full_name,department_code\n" +
		"EEE/2024/001,Alan Turing,EEE\n" +
		"EEE/2024/002,No Department,XYZ\n" +
		"EEE/2024/001,Alan Turing,EEE\n")

	w := postCSV(t, r, "/api/v1/admin/students/import", "roster.csv", csvData)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 3, summary["total_rows"])
	assert.EqualValues(t, 1, summary["inserted"])
	assert.EqualValues(t, 2, summary["failed"])

	var count int64
	require.NoError(t, db.Model(&models.Student{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
