package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/examguard/exam_manager_backend/internal/fingerprint"
	"github.com/examguard/exam_manager_backend/internal/models"
	"github.com/examguard/exam_manager_backend/internal/session"
)

// StudentAuthMiddleware validates the two student cookies (composite
// session token + deviceId) against each other, against the fingerprint
// recomputed from the request headers, and against the device-session
// store. Any mismatch fails closed: the store revokes the student's active
// sessions before the request is rejected.
func StudentAuthMiddleware(db *gorm.DB, store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenCookie, err := c.Cookie(session.SessionCookie)
		if err != nil || tokenCookie == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"is_valid": false, "message": "Session invalid or device mismatch"})
			return
		}
		deviceCookie, err := c.Cookie(session.DeviceCookie)
		if err != nil || deviceCookie == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"is_valid": false, "message": "Session invalid or device mismatch"})
			return
		}

		studentUUID, tokenDeviceID, _, err := session.DecodeToken(tokenCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"is_valid": false, "message": "Session invalid or device mismatch"})
			return
		}

		var student models.Student
		if err := db.Where("student_id = ?", studentUUID).First(&student).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"is_valid": false, "message": "Session invalid or device mismatch"})
			return
		}

		// The device id must agree across token, cookie, and the
		// fingerprint recomputed from this request.
		currentDeviceID := fingerprint.Generate(fingerprint.FromRequest(c.Request))
		if tokenDeviceID != currentDeviceID || tokenDeviceID != deviceCookie {
			_ = store.InvalidateAll(student.ID)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"is_valid": false, "message": "Session invalid or device mismatch"})
			return
		}

		if _, err := store.Validate(student.ID, tokenDeviceID); err != nil {
			if errors.Is(err, session.ErrInvalidSession) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"is_valid": false, "message": "Session invalid or device mismatch"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"is_valid": false, "message": "Session check failed"})
			return
		}

		c.Set("student", student)
		c.Set("deviceID", tokenDeviceID)
		c.Next()
	}
}
