package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"

	"github.com/examguard/exam_manager_backend/internal/config"
	"github.com/examguard/exam_manager_backend/internal/database"
	"github.com/examguard/exam_manager_backend/internal/routes"
	"github.com/examguard/exam_manager_backend/internal/ws"
)

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}

	if err := database.SeedAcademicData(db); err != nil {
		log.Fatalf("academic seed failed: %v", err)
	}

	hubs := &ws.Hubs{
		Monitoring: ws.NewMonitoringHub(),
		Student:    ws.NewStudentHub(),
	}
	go hubs.Monitoring.Run()
	go hubs.Student.Run()

	r := gin.Default()
	routes.Register(r, db, cfg, hubs)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Println("server exited with error:", err)
		os.Exit(1)
	}
}
