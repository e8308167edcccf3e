package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexex18/Restorical-Wisconsin/models"
)

// Health returns a handler for GET /api/v1/health.
//
// The relay holds no pooled resources (no browser, no connections it
// cannot re-open), so there is no degraded state to report.
func Health(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: Version,
		})
	}
}
