package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.POST("/users/role", h.setRole)
}

func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.Touch(c.Request.Context(), userID, middleware.UserEmailFromContext(c), middleware.UserNameFromContext(c))
	if err != nil {
		WriteError(c, err, "failed to load user")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	})
}

type setRoleRequest struct {
	TargetUID string `json:"targetUid"`
	NewRole   string `json:"newRole"`
}

func (h *Handler) setRole(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req setRoleRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.Svc.EnsureHasRole(c.Request.Context(), userID, RoleAdmin); err != nil {
		WriteError(c, err, "Failed to set user role.")
		return
	}
	if req.TargetUID == "" || req.NewRole == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_argument", "A 'targetUid' and 'newRole' must be provided.", nil)
		return
	}
	if err := h.Svc.AssignRole(c.Request.Context(), req.TargetUID, req.NewRole); err != nil {
		WriteError(c, err, "Failed to set user role.")
		return
	}
	respond.OK(c, gin.H{
		"success": true,
		"message": "User role has been updated to " + req.NewRole + ".",
	})
}

// WriteError maps role and identity errors to responses.
func WriteError(c *gin.Context, err error, fallback string) {
	var perm *PermissionError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "You must be logged in.", nil)
	case errors.As(err, &perm):
		respond.Error(c, http.StatusForbidden, "permission_denied", perm.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_argument", "Role must be one of admin, benchmarking_admin, analyst.", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", fallback, nil)
	}
}
