package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and, when a realtime hub is attached, the number
// of connected users.
func Health(connected func() int) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		}
		if connected != nil {
			body["connectedUsers"] = connected()
		}
		c.JSON(http.StatusOK, body)
	}
}
