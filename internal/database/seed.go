package database

import (
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/config"
	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/utils"
)

func SeedAdmin(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := cfg.AdminEmail
	if email == "" {
		email = "admin@exammanager.com"
	}
	fullName := cfg.AdminFullName
	if fullName == "" {
		fullName = "System Administrator"
	}
	password := cfg.AdminPassword
	if password == "" {
		password = "Admin@123"
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		UserID:   uuid.NewString(),
		FullName: fullName,
		Email:    email,
		Password: hashed,
		Role:     "admin",
		Active:   true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Println("Seeded initial admin:", email)
	return nil
}

// SeedAcademicData loads the sample faculties and departments so a fresh
// install has somewhere to hang students and subjects.
func SeedAcademicData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Faculty{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	type deptDef struct {
		Name string
		Code string
		Desc string
	}
	faculties := []struct {
		Name  string
		Code  string
		Desc  string
		Depts []deptDef
	}{
		{
			Name: "Faculty of Engineering", Code: "ENG", Desc: "Engineering and Technology",
			Depts: []deptDef{
				{"Computer Engineering", "CEN", "Computer and Software Engineering"},
				{"Electrical Engineering", "EEN", "Electrical and Electronics Engineering"},
				{"Mechanical Engineering", "MEN", "Mechanical Engineering"},
			},
		},
		{
			Name: "Faculty of Science", Code: "SCI", Desc: "Natural and Applied Sciences",
			Depts: []deptDef{
				{"Computer Science", "CSC", "Computing and Information Science"},
				{"Mathematics", "MTH", "Pure and Applied Mathematics"},
				{"Physics", "PHY", "Physics"},
			},
		},
	}

	for _, f := range faculties {
		fac := models.Faculty{Name: f.Name, Code: f.Code, Description: f.Desc}
		if err := db.Create(&fac).Error; err != nil {
			return err
		}
		for _, d := range f.Depts {
			dept := models.Department{
				FacultyIDRef: fac.ID,
				Name:         d.Name,
				Code:         d.Code,
				Description:  d.Desc,
			}
			if err := db.Create(&dept).Error; err != nil {
				return err
			}
		}
	}
	log.Println("Seeded sample faculties and departments")
	return nil
}
