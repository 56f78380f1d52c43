package routes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/config"
	"github.com/examguard/exam_manager_backend/internal/controllers"
	"github.com/examguard/exam_manager_backend/internal/middleware"
	"github.com/examguard/exam_manager_backend/internal/session"
	"github.com/examguard/exam_manager_backend/internal/verification"
	"github.com/examguard/exam_manager_backend/internal/ws"
)

func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config, hubs *ws.Hubs) {
	accessMins, err := strconv.Atoi(cfg.AccessTokenTTLMinutes)
	if err != nil || accessMins <= 0 {
		accessMins = 15
	}
	refreshDays, err := strconv.Atoi(cfg.RefreshTokenTTLDays)
	if err != nil || refreshDays <= 0 {
		refreshDays = 30
	}
	threshold, err := strconv.ParseFloat(cfg.FaceMatchThreshold, 64)
	if err != nil || threshold <= 0 {
		threshold = verification.DefaultMatchThreshold
	}
	cookieSecure := cfg.CookieSecure == "true" || cfg.CookieSecure == "1"

	store := session.NewStore(db)
	workflow := verification.NewWorkflow(db)
	matcher := verification.NewMatcher(threshold)

	// Controllers
	staffAuthCtrl := &controllers.StaffAuthController{
		DB:            db,
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshJWTSecret,
		AccessTTL:     time.Duration(accessMins) * time.Minute,
		RefreshTTL:    time.Duration(refreshDays) * 24 * time.Hour,
	}
	studentAuthCtrl := &controllers.StudentAuthController{
		DB:           db,
		Store:        store,
		Workflow:     workflow,
		Matcher:      matcher,
		CookieSecure: cookieSecure,
	}
	examSessionCtrl := &controllers.ExamSessionController{
		DB:            db,
		Store:         store,
		MonitoringHub: hubs.Monitoring,
		StudentHub:    hubs.Student,
	}
	proctorCtrl := &controllers.ProctorController{
		DB:            db,
		Store:         store,
		Workflow:      workflow,
		MonitoringHub: hubs.Monitoring,
		StudentHub:    hubs.Student,
	}
	adminCtrl := &controllers.AdminController{DB: db}
	academicCtrl := &controllers.AcademicController{DB: db}
	examCtrl := &controllers.ExamController{DB: db}

	// Student-facing (cookie auth where needed)
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/check-student", studentAuthCtrl.CheckStudent)
		auth.POST("/login", studentAuthCtrl.Login)
		auth.POST("/check-approval-status", studentAuthCtrl.CheckApprovalStatus)
		auth.POST("/report-face-failure", studentAuthCtrl.ReportFaceFailure)
		auth.POST("/verify-face", studentAuthCtrl.VerifyFace)
	}

	studentMW := middleware.StudentAuthMiddleware(db, store)
	studentAPI := r.Group("/api/v1", studentMW)
	{
		studentAPI.GET("/auth/check-session", studentAuthCtrl.CheckSession)
		studentAPI.POST("/auth/logout", studentAuthCtrl.Logout)

		studentAPI.POST("/exam-sessions", examSessionCtrl.Start)
		studentAPI.POST("/exam-sessions/:id/signals", examSessionCtrl.Signals)
		studentAPI.POST("/exam-sessions/:id/submit", examSessionCtrl.Submit)

		studentAPI.GET("/ws/student", ws.StudentHandler(hubs))
	}

	// Staff auth
	staff := r.Group("/api/v1/staff")
	{
		staff.POST("/login", staffAuthCtrl.Login)
		staff.POST("/refresh", staffAuthCtrl.Refresh)
	}

	authMW := middleware.AuthMiddleware(db, middleware.AuthConfig{
		JWTSecret: cfg.JWTSecret,
	})
	api := r.Group("/api/v1", authMW)
	{
		api.GET("/staff/me", staffAuthCtrl.Me)
		api.POST("/staff/logout", staffAuthCtrl.Logout)

		// Proctor area (and admin)
		proctor := api.Group("/proctor", middleware.RequireRoles("proctor", "admin"))
		{
			proctor.GET("/face-verification-issues", proctorCtrl.ListFaceIssues)
			proctor.POST("/face-verification-issues/:id/approve", proctorCtrl.ApproveFaceIssue)
			proctor.POST("/face-verification-issues/:id/reject", proctorCtrl.RejectFaceIssue)
			proctor.GET("/active-sessions", proctorCtrl.ActiveSessions)
			proctor.POST("/sessions/:id/logout", proctorCtrl.LogoutStudent)
			proctor.GET("/logs", proctorCtrl.ListLogs)

			proctor.GET("/ws/monitoring", ws.MonitoringHandler(hubs.Monitoring))
		}

		// Admin-only
		admin := api.Group("/admin", middleware.RequireRoles("admin"))
		{
			admin.GET("/users", adminCtrl.ListUsers)
			admin.POST("/users", staffAuthCtrl.Register)
			admin.GET("/users/:user_id", adminCtrl.GetUser)
			admin.PUT("/users/:user_id", adminCtrl.UpdateUser)
			admin.DELETE("/users/:user_id", adminCtrl.DeleteUser)

			admin.GET("/students", adminCtrl.ListStudents)
			admin.POST("/students", adminCtrl.CreateStudent)
			admin.POST("/students/import", adminCtrl.ImportStudents)
			admin.GET("/students/:student_id", adminCtrl.GetStudent)
			admin.PUT("/students/:student_id", adminCtrl.UpdateStudent)
			admin.DELETE("/students/:student_id", adminCtrl.DeleteStudent)

			admin.GET("/faculties", academicCtrl.ListFaculties)
			admin.POST("/faculties", academicCtrl.CreateFaculty)
			admin.DELETE("/faculties/:id", academicCtrl.DeleteFaculty)

			admin.GET("/departments", academicCtrl.ListDepartments)
			admin.POST("/departments", academicCtrl.CreateDepartment)
			admin.DELETE("/departments/:id", academicCtrl.DeleteDepartment)

			admin.GET("/subjects", academicCtrl.ListSubjects)
			admin.POST("/subjects", academicCtrl.CreateSubject)
			admin.DELETE("/subjects/:id", academicCtrl.DeleteSubject)

			admin.GET("/exams", examCtrl.ListExams)
			admin.POST("/exams", examCtrl.CreateExam)
			admin.GET("/exams/:id", examCtrl.GetExam)
			admin.PUT("/exams/:id", examCtrl.UpdateExam)
			admin.DELETE("/exams/:id", examCtrl.DeleteExam)
		}
	}
}
