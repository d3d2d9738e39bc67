package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)
		metrics.ObserveRequest(status, latency)

		userID, _ := c.Get(userIDKey)
		dealID, _ := c.Get("dealId")
		analysisID, _ := c.Get("analysisId")
		statusTransition := c.GetString("statusTransition")

		telemetry.Info("request.complete", map[string]any{
			"request_id":        reqID,
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"status":            status,
			"status_transition": statusTransition,
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           userID,
			"deal_id":           dealID,
			"analysis_id":       analysisID,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
