package analytics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/server/respond"
	"sealdeal-backend/internal/users"
)

// Backfiller rebuilds rows for analyses stored before the row existed.
type Backfiller interface {
	Backfill(ctx context.Context) (int, error)
}

// RoleChecker is satisfied by users.Service.
type RoleChecker interface {
	EnsureHasRole(ctx context.Context, userID, required string) error
}

type Handler struct {
	Svc      *Service
	Backfill Backfiller
	Roles    RoleChecker
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analytics", h.list)
	rg.POST("/analytics/backfill", h.backfill)
	rg.POST("/analytics/reconcile", h.reconcile)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.Svc.List(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to get analytics data.", nil)
		return
	}
	respond.OK(c, gin.H{"count": len(rows), "analytics": rows})
}

func (h *Handler) backfill(c *gin.Context) {
	if err := h.Roles.EnsureHasRole(c.Request.Context(), middleware.UserIDFromContext(c), users.RoleAdmin); err != nil {
		users.WriteError(c, err, "Failed to backfill analytics.")
		return
	}
	n, err := h.Backfill.Backfill(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to backfill analytics.", gin.H{"details": err.Error()})
		return
	}
	respond.OK(c, gin.H{"success": true, "processedCount": n})
}

func (h *Handler) reconcile(c *gin.Context) {
	if err := h.Roles.EnsureHasRole(c.Request.Context(), middleware.UserIDFromContext(c), users.RoleAdmin); err != nil {
		users.WriteError(c, err, "Failed to export analytics.")
		return
	}
	n, err := h.Svc.Reconcile(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to export analytics.", gin.H{"details": err.Error()})
		return
	}
	respond.OK(c, gin.H{"success": true, "exportedCount": n})
}
