package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
)

// AcademicController handles the faculty/department/subject hierarchy.
type AcademicController struct {
	DB *gorm.DB
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type createFacultyRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
}

func (ac *AcademicController) ListFaculties(c *gin.Context) {
	var faculties []models.Faculty
	if err := ac.DB.Order("name ASC").Find(&faculties).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": faculties})
}

func (ac *AcademicController) CreateFaculty(c *gin.Context) {
	var req createFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	faculty := models.Faculty{
		Name:        req.Name,
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Description: req.Description,
	}
	if err := ac.DB.Create(&faculty).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "faculty name or code already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": faculty.ID})
}

func (ac *AcademicController) DeleteFaculty(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := ac.DB.Where("id = ?", id).Delete(&models.Faculty{}).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type createDepartmentRequest struct {
	FacultyCode string `json:"faculty_code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
}

func (ac *AcademicController) ListDepartments(c *gin.Context) {
	q := ac.DB.Model(&models.Department{}).Order("name ASC")
	if facultyCode := strings.ToUpper(strings.TrimSpace(c.Query("faculty"))); facultyCode != "" {
		sub := ac.DB.Table("faculties").Select("id").Where("code = ?", facultyCode)
		q = q.Where("faculty_id_ref IN (?)", sub)
	}
	var departments []models.Department
	if err := q.Find(&departments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": departments})
}

func (ac *AcademicController) CreateDepartment(c *gin.Context) {
	var req createDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var faculty models.Faculty
	if err := ac.DB.Where("code = ?", strings.ToUpper(strings.TrimSpace(req.FacultyCode))).First(&faculty).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "faculty not found"})
		return
	}
	department := models.Department{
		FacultyIDRef: faculty.ID,
		Name:         req.Name,
		Code:         strings.ToUpper(strings.TrimSpace(req.Code)),
		Description:  req.Description,
	}
	if err := ac.DB.Create(&department).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "department code already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": department.ID})
}

func (ac *AcademicController) DeleteDepartment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := ac.DB.Where("id = ?", id).Delete(&models.Department{}).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type createSubjectRequest struct {
	DepartmentCode string `json:"department_code" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Code           string `json:"code" binding:"required"`
}

func (ac *AcademicController) ListSubjects(c *gin.Context) {
	q := ac.DB.Model(&models.Subject{}).Order("name ASC")
	if deptCode := strings.ToUpper(strings.TrimSpace(c.Query("department"))); deptCode != "" {
		sub := ac.DB.Table("departments").Select("id").Where("code = ?", deptCode)
		q = q.Where("department_id_ref IN (?)", sub)
	}
	var subjects []models.Subject
	if err := q.Find(&subjects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subjects})
}

func (ac *AcademicController) CreateSubject(c *gin.Context) {
	var req createSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var dept models.Department
	if err := ac.DB.Where("code = ?", strings.ToUpper(strings.TrimSpace(req.DepartmentCode))).First(&dept).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "department not found"})
		return
	}
	subject := models.Subject{
		DepartmentIDRef: dept.ID,
		Name:            req.Name,
		Code:            strings.ToUpper(strings.TrimSpace(req.Code)),
	}
	if err := ac.DB.Create(&subject).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "subject code already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": subject.ID})
}

func (ac *AcademicController) DeleteSubject(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := ac.DB.Where("id = ?", id).Delete(&models.Subject{}).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
