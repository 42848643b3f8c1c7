package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up the status routes on the Gin router.
func registerRoutes(router *gin.Engine, monitor StatusSource) {
	router.GET("/status", handleStatus(monitor))
	router.GET("/healthz", handleHealthz(monitor))
}

// handleStatus returns the full health snapshot as JSON.
func handleStatus(monitor StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, monitor.Status(c.Request.Context()))
	}
}

// handleHealthz is the liveness probe: 200 when both backing services are
// reachable, 503 otherwise.
func handleHealthz(monitor StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := monitor.Status(c.Request.Context())
		if st.AIAvailable && st.DBAvailable {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"ai":     st.AIAvailable,
			"db":     st.DBAvailable,
		})
	}
}
