package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/examguard/exam_manager_backend/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on the auth middleware in front.
		return true
	},
}

// MonitoringHandler upgrades an authenticated proctor/admin connection and
// subscribes it to the monitoring broadcast.
func MonitoringHandler(hub *MonitoringHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get("user"); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newMonitoringClient(hub, conn)
		hub.register <- client

		go client.writePump()
		client.readPump()
	}
}

// StudentHandler upgrades a cookie-authenticated student connection. The
// student identity comes from StudentAuthMiddleware.
func StudentHandler(hubs *Hubs) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hubs == nil || hubs.Student == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "realtime not available"})
			return
		}
		sVal, ok := c.Get("student")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		student := sVal.(models.Student)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newStudentClient(hubs.Student, conn, student.StudentID)
		hubs.Student.register <- client

		go client.writePump()
		client.readPump()
	}
}
