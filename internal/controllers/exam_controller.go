package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
)

type ExamController struct {
	DB *gorm.DB
}

type createExamRequest struct {
	SubjectCode     string    `json:"subject_code" binding:"required"`
	Title           string    `json:"title" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,gt=0"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	AllowCalculator *bool     `json:"allow_calculator"`
}

type updateExamRequest struct {
	Title           *string    `json:"title"`
	DurationMinutes *int       `json:"duration_minutes"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	AllowCalculator *bool      `json:"allow_calculator"`
}

func (ec *ExamController) ListExams(c *gin.Context) {
	type examRow struct {
		models.Exam
		SubjectName string
		SubjectCode string
	}
	var rows []examRow
	q := ec.DB.Table("exams").
		Select("exams.*, sub.name AS subject_name, sub.code AS subject_code").
		Joins("JOIN subjects sub ON sub.id = exams.subject_id_ref").
		Order("exams.start_time DESC")
	if subjectCode := strings.ToUpper(strings.TrimSpace(c.Query("subject"))); subjectCode != "" {
		q = q.Where("sub.code = ?", subjectCode)
	}
	if err := q.Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":               row.ID,
			"title":            row.Title,
			"subject":          row.SubjectName,
			"subject_code":     row.SubjectCode,
			"duration_minutes": row.DurationMinutes,
			"start_time":       row.StartTime,
			"end_time":         row.EndTime,
			"allow_calculator": row.AllowCalculator,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (ec *ExamController) CreateExam(c *gin.Context) {
	var req createExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.EndTime.After(req.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}
	var subject models.Subject
	if err := ec.DB.Where("code = ?", strings.ToUpper(strings.TrimSpace(req.SubjectCode))).First(&subject).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject not found"})
		return
	}
	allowCalc := true
	if req.AllowCalculator != nil {
		allowCalc = *req.AllowCalculator
	}
	exam := models.Exam{
		SubjectIDRef:    subject.ID,
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		AllowCalculator: allowCalc,
	}
	if err := ec.DB.Create(&exam).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": exam.ID})
}

func (ec *ExamController) GetExam(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var exam models.Exam
	if err := ec.DB.Where("id = ?", id).First(&exam).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}
	c.JSON(http.StatusOK, exam)
}

func (ec *ExamController) UpdateExam(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var exam models.Exam
	if err := ec.DB.Where("id = ?", id).First(&exam).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}
	var req updateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_minutes must be positive"})
			return
		}
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.StartTime != nil {
		exam.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = *req.EndTime
	}
	if !exam.EndTime.After(exam.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}
	if req.AllowCalculator != nil {
		exam.AllowCalculator = *req.AllowCalculator
	}
	if err := ec.DB.Save(&exam).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (ec *ExamController) DeleteExam(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := ec.DB.Where("id = ?", id).Delete(&models.Exam{}).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
