package controllers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/utils"
)

type AdminController struct {
	DB *gorm.DB
}

type rosterImportError struct {
	Row          int    `json:"row"`
	MatricNumber string `json:"matric_number,omitempty"`
	Error        string `json:"error"`
}

// ImportStudents bulk-creates students from a CSV roster.
// Expected header columns (case-insensitive):
// matric_number, full_name, department_code, email (optional), passport_photo (optional)
func (a *AdminController) ImportStudents(c *gin.Context) {
	// Limit max upload size (10MB) to avoid accidental huge files.
	if err := c.Request.ParseMultipartForm(10 << 20); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse form"})
		return
	}
	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	if fileHeader == nil || fileHeader.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}
	filename := strings.ToLower(strings.TrimSpace(fileHeader.Filename))
	if !strings.HasSuffix(filename, ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv files are allowed"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}

	// Normalise line endings so files saved with only CR or CRLF behave consistently.
	data = bytes.ReplaceAll(data, []byte{'\r', '\n'}, []byte{'\n'})
	data = bytes.ReplaceAll(data, []byte{'\r'}, []byte{'\n'})

	delimiter := ','
	firstLineEnd := bytes.IndexByte(data, '\n')
	if firstLineEnd == -1 {
		firstLineEnd = len(data)
	}
	firstLine := data[:firstLineEnd]
	firstLine = bytes.TrimPrefix(firstLine, []byte{0xEF, 0xBB, 0xBF})
	if bytes.Contains(firstLine, []byte{';'}) && !bytes.Contains(firstLine, []byte{','}) {
		delimiter = ';'
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if delimiter != ',' {
		reader.Comma = delimiter
	}

	header, err := reader.Read()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read header"})
		return
	}
	cleanHeader := func(val string) string {
		v := strings.TrimSpace(val)
		for strings.HasPrefix(v, "\uFEFF") {
			v = strings.TrimPrefix(v, "\uFEFF")
		}
		v = strings.Trim(v, "\"'")
		return v
	}
	for i := range header {
		header[i] = cleanHeader(header[i])
	}

	headerIdx := make(map[string]int, len(header))
	for idx, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if key != "" {
			headerIdx[key] = idx
		}
	}
	log.Printf("import csv headers: %+v", header)

	required := []string{"matric_number", "full_name", "department_code"}
	for _, key := range required {
		if _, ok := headerIdx[key]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("missing header column: %s", key)})
			return
		}
	}

	getVal := func(record []string, key string) string {
		idx, ok := headerIdx[key]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var (
		totalRows   int
		createdRows int
		failures    []rosterImportError
	)

	rowNum := 1 // already consumed header line
	deptCache := make(map[string]models.Department)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			failures = append(failures, rosterImportError{
				Row:   rowNum + 1,
				Error: fmt.Sprintf("failed to read row: %v", err),
			})
			continue
		}
		rowNum++
		totalRows++

		matric := strings.ToUpper(getVal(row, "matric_number"))
		fullName := getVal(row, "full_name")
		deptCode := strings.ToUpper(getVal(row, "department_code"))
		email := strings.ToLower(getVal(row, "email"))
		passportPhoto := getVal(row, "passport_photo")

		if matric == "" || fullName == "" || deptCode == "" {
			failures = append(failures, rosterImportError{
				Row:          rowNum,
				MatricNumber: matric,
				Error:        "matric_number, full_name, and department_code are required",
			})
			continue
		}

		if existingErr := a.DB.Where("matric_number = ?", matric).First(&models.Student{}).Error; existingErr == nil {
			failures = append(failures, rosterImportError{
				Row:          rowNum,
				MatricNumber: matric,
				Error:        "matric number already exists",
			})
			continue
		} else if !errors.Is(existingErr, gorm.ErrRecordNotFound) {
			failures = append(failures, rosterImportError{
				Row:          rowNum,
				MatricNumber: matric,
				Error:        fmt.Sprintf("failed to check existing student: %v", existingErr),
			})
			continue
		}

		dept, ok := deptCache[deptCode]
		if !ok {
			var fetched models.Department
			if err := a.DB.Where("code = ?", deptCode).First(&fetched).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					failures = append(failures, rosterImportError{
						Row:          rowNum,
						MatricNumber: matric,
						Error:        fmt.Sprintf("department '%s' not found", deptCode),
					})
				} else {
					failures = append(failures, rosterImportError{
						Row:          rowNum,
						MatricNumber: matric,
						Error:        err.Error(),
					})
				}
				continue
			}
			deptCache[deptCode] = fetched
			dept = fetched
		}

		student := models.Student{
			MatricNumber:    matric,
			FullName:        fullName,
			Email:           email,
			PassportPhoto:   passportPhoto,
			DepartmentIDRef: dept.ID,
		}
		if err := a.DB.Create(&student).Error; err != nil {
			failures = append(failures, rosterImportError{
				Row:          rowNum,
				MatricNumber: matric,
				Error:        fmt.Sprintf("failed to insert student: %v", err),
			})
			continue
		}

		createdRows++
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": gin.H{
			"total_rows": totalRows,
			"inserted":   createdRows,
			"failed":     len(failures),
		},
		"errors": failures,
	})
}

func (a *AdminController) ListStudents(c *gin.Context) {
	// Query params: limit, page, all, sort_by, sort_dir, q, department
	all := strings.EqualFold(c.Query("all"), "true") || c.Query("all") == "1"
	limit := 50
	page := 1
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	sortBy := strings.ToLower(c.DefaultQuery("sort_by", "created_at"))
	sortDir := strings.ToUpper(c.DefaultQuery("sort_dir", "DESC"))
	if sortDir != "ASC" && sortDir != "DESC" {
		sortDir = "DESC"
	}
	allowedSorts := map[string]string{
		"id":            "id",
		"created_at":    "created_at",
		"matric_number": "matric_number",
		"full_name":     "full_name",
		"email":         "email",
	}
	sortCol, ok := allowedSorts[sortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := fmt.Sprintf("%s %s", sortCol, sortDir)

	qText := strings.TrimSpace(c.Query("q"))
	deptFilter := strings.TrimSpace(strings.ToUpper(c.Query("department")))

	applyFilters := func(q *gorm.DB) *gorm.DB {
		if qText != "" {
			like := "%" + qText + "%"
			q = q.Where("full_name ILIKE ? OR matric_number ILIKE ?", like, like)
		}
		if deptFilter != "" {
			sub := a.DB.Table("departments").Select("id").Where("code = ?", deptFilter)
			q = q.Where("department_id_ref IN (?)", sub)
		}
		return q
	}

	var total int64
	if err := applyFilters(a.DB.Model(&models.Student{})).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var students []models.Student
	listQ := applyFilters(a.DB.Model(&models.Student{}).Order(order))
	if !all {
		offset := (page - 1) * limit
		listQ = listQ.Offset(offset).Limit(limit)
	}
	if err := listQ.Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	deptIDs := make([]uint, 0, len(students))
	for _, s := range students {
		deptIDs = append(deptIDs, s.DepartmentIDRef)
	}
	deptNames := make(map[uint]string)
	if len(deptIDs) > 0 {
		var depts []models.Department
		if err := a.DB.Where("id IN ?", deptIDs).Find(&depts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, d := range depts {
			deptNames[d.ID] = d.Name
		}
	}

	out := make([]gin.H, 0, len(students))
	for _, s := range students {
		out = append(out, gin.H{
			"id":            s.StudentID,
			"matric_number": s.MatricNumber,
			"full_name":     s.FullName,
			"email":         s.Email,
			"department":    deptNames[s.DepartmentIDRef],
			"created_at":    s.CreatedAt,
			"updated_at":    s.UpdatedAt,
		})
	}
	meta := gin.H{"total": total, "all": all}
	if !all {
		meta["limit"] = limit
		meta["page"] = page
		meta["sort_by"] = sortCol
		meta["sort_dir"] = sortDir
	}
	if qText != "" {
		meta["q"] = qText
	}
	if deptFilter != "" {
		meta["department"] = deptFilter
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

func (a *AdminController) GetStudent(c *gin.Context) {
	studentID := c.Param("student_id")
	var s models.Student
	if err := a.DB.Where("student_id = ?", studentID).First(&s).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	var dept models.Department
	a.DB.First(&dept, s.DepartmentIDRef)
	c.JSON(http.StatusOK, gin.H{
		"id":             s.StudentID,
		"matric_number":  s.MatricNumber,
		"full_name":      s.FullName,
		"email":          s.Email,
		"passport_photo": s.PassportPhoto,
		"department":     dept.Name,
		"created_at":     s.CreatedAt,
		"updated_at":     s.UpdatedAt,
	})
}

type createStudentRequest struct {
	MatricNumber   string `json:"matric_number" binding:"required"`
	FullName       string `json:"full_name" binding:"required"`
	Email          string `json:"email"`
	PassportPhoto  string `json:"passport_photo"`
	DepartmentCode string `json:"department_code" binding:"required"`
}

func (a *AdminController) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var dept models.Department
	if err := a.DB.Where("code = ?", strings.ToUpper(strings.TrimSpace(req.DepartmentCode))).First(&dept).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "department not found"})
		return
	}
	student := models.Student{
		MatricNumber:    strings.ToUpper(strings.TrimSpace(req.MatricNumber)),
		FullName:        req.FullName,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		PassportPhoto:   req.PassportPhoto,
		DepartmentIDRef: dept.ID,
	}
	if err := a.DB.Create(&student).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "matric number already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": student.StudentID})
}

type updateStudentRequest struct {
	MatricNumber   *string         `json:"matric_number"`
	FullName       *string         `json:"full_name"`
	Email          *string         `json:"email"`
	PassportPhoto  *FlexibleString `json:"passport_photo"`
	DepartmentCode *string         `json:"department_code"`
}

func (a *AdminController) UpdateStudent(c *gin.Context) {
	studentID := c.Param("student_id")
	var s models.Student
	if err := a.DB.Where("student_id = ?", studentID).First(&s).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.MatricNumber != nil {
		s.MatricNumber = strings.ToUpper(strings.TrimSpace(*req.MatricNumber))
	}
	if req.FullName != nil {
		s.FullName = *req.FullName
	}
	if req.Email != nil {
		s.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.PassportPhoto != nil {
		s.PassportPhoto = req.PassportPhoto.String()
	}
	if req.DepartmentCode != nil {
		var dept models.Department
		if err := a.DB.Where("code = ?", strings.ToUpper(strings.TrimSpace(*req.DepartmentCode))).First(&dept).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "department not found"})
			return
		}
		s.DepartmentIDRef = dept.ID
	}

	if err := a.DB.Save(&s).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "matric number already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (a *AdminController) DeleteStudent(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("student_id"))
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student_id"})
		return
	}
	var s models.Student
	if err := a.DB.Where("student_id = ?", studentID).First(&s).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		// Remove device sessions, face issues, and exam sessions referencing the student
		if err := tx.Where("student_id_ref = ?", s.ID).Delete(&models.DeviceSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id_ref = ?", s.ID).Delete(&models.FaceVerificationIssue{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id_ref = ?", s.ID).Delete(&models.ExamSession{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Student{}, s.ID).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (a *AdminController) ListUsers(c *gin.Context) {
	// Query params: limit, page, all, sort_by, sort_dir, q, role, active
	all := strings.EqualFold(c.Query("all"), "true") || c.Query("all") == "1"
	limit := 50
	page := 1
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	sortBy := strings.ToLower(c.DefaultQuery("sort_by", "created_at"))
	sortDir := strings.ToUpper(c.DefaultQuery("sort_dir", "DESC"))
	if sortDir != "ASC" && sortDir != "DESC" {
		sortDir = "DESC"
	}
	allowedSorts := map[string]string{
		"id":         "id",
		"created_at": "created_at",
		"full_name":  "full_name",
		"email":      "email",
		"role":       "role",
		"active":     "active",
	}
	sortCol, ok := allowedSorts[sortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := fmt.Sprintf("%s %s", sortCol, sortDir)

	qText := strings.TrimSpace(c.Query("q"))
	role := strings.TrimSpace(strings.ToLower(c.Query("role")))
	activeStr := strings.TrimSpace(strings.ToLower(c.Query("active")))

	if role != "" && !IsValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	applyFilters := func(q *gorm.DB) (*gorm.DB, bool) {
		if qText != "" {
			like := "%" + qText + "%"
			q = q.Where("full_name ILIKE ? OR email ILIKE ?", like, like)
		}
		if role != "" {
			q = q.Where("role = ?", role)
		}
		if activeStr != "" {
			switch activeStr {
			case "true", "1":
				q = q.Where("active = ?", true)
			case "false", "0":
				q = q.Where("active = ?", false)
			default:
				return nil, false
			}
		}
		return q, true
	}

	base, ok := applyFilters(a.DB.Model(&models.User{}))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid active value"})
		return
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var users []models.User
	listQ, _ := applyFilters(a.DB.Model(&models.User{}).Order(order))
	if !all {
		offset := (page - 1) * limit
		listQ = listQ.Offset(offset).Limit(limit)
	}
	if err := listQ.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"id":         u.UserID,
			"full_name":  u.FullName,
			"email":      u.Email,
			"role":       u.Role,
			"active":     u.Active,
			"created_at": u.CreatedAt,
			"updated_at": u.UpdatedAt,
		})
	}
	meta := gin.H{"total": total, "all": all}
	if !all {
		meta["limit"] = limit
		meta["page"] = page
		meta["sort_by"] = sortCol
		meta["sort_dir"] = sortDir
	}
	if qText != "" {
		meta["q"] = qText
	}
	if role != "" {
		meta["role"] = role
	}
	if activeStr != "" {
		meta["active"] = activeStr
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

func (a *AdminController) GetUser(c *gin.Context) {
	userID := c.Param("user_id")
	var u models.User
	if err := a.DB.Where("user_id = ?", userID).First(&u).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         u.UserID,
		"full_name":  u.FullName,
		"email":      u.Email,
		"role":       u.Role,
		"active":     u.Active,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	})
}

type updateUserRequest struct {
	FullName *string         `json:"full_name"`
	Email    *string         `json:"email"`
	Password *FlexibleString `json:"password"`
	Role     *string         `json:"role"`
	Active   *bool           `json:"active"`
}

func (a *AdminController) UpdateUser(c *gin.Context) {
	userID := c.Param("user_id")
	var u models.User
	if err := a.DB.Where("user_id = ?", userID).First(&u).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Role != nil {
		if !IsValidRole(*req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		u.Role = *req.Role
	}
	if req.Active != nil {
		u.Active = *req.Active
	}
	if req.Password != nil {
		raw := strings.TrimSpace(req.Password.String())
		if raw != "" {
			pw, err := utils.HashPassword(raw)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
				return
			}
			u.Password = pw
		}
	}

	if err := a.DB.Save(&u).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (a *AdminController) DeleteUser(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	var u models.User
	if err := a.DB.Where("user_id = ?", userID).First(&u).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id_ref = ?", u.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.User{}, u.ID).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
