package config

import (
	"os"
)

type Config struct {
	Port       string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	// Staff token settings
	JWTSecret             string
	RefreshJWTSecret      string
	AccessTokenTTLMinutes string // minutes
	RefreshTokenTTLDays   string // days
	// Initial admin account
	AdminEmail    string
	AdminPassword string
	AdminFullName string
	// Face matching
	FaceMatchThreshold string
	// Cookies
	CookieSecure string
}

func Load() *Config {
	return &Config{
		Port:       getenv("PORT", "8080"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "exam_manager_db"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		JWTSecret:             getenv("JWT_SECRET", "supersecret_change_me"),
		RefreshJWTSecret:      getenv("REFRESH_JWT_SECRET", getenv("JWT_SECRET", "supersecret_change_me")),
		AccessTokenTTLMinutes: getenv("ACCESS_TOKEN_TTL_MINUTES", "15"),
		RefreshTokenTTLDays:   getenv("REFRESH_TOKEN_TTL_DAYS", "30"),

		AdminEmail:    getenv("ADMIN_EMAIL", "admin@exammanager.com"),
		AdminPassword: getenv("ADMIN_PASSWORD", "Admin@123"),
		AdminFullName: getenv("ADMIN_FULL_NAME", "System Administrator"),

		FaceMatchThreshold: getenv("FACE_MATCH_THRESHOLD", "0.6"),
		CookieSecure:       getenv("COOKIE_SECURE", "false"),
	}
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
