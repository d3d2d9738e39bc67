package benchmarks

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/server/respond"
	"sealdeal-backend/internal/users"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/benchmarks", h.add)
	rg.GET("/benchmarks", h.list)
}

func (h *Handler) add(c *gin.Context) {
	var in AddInput
	_ = c.ShouldBindJSON(&in)

	b, err := h.Svc.Add(c.Request.Context(), middleware.UserIDFromContext(c), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "invalid_argument", "Industry, stage, and ARR are required.", nil)
		default:
			users.WriteError(c, err, "Failed to add benchmark data.")
		}
		return
	}
	respond.OK(c, gin.H{
		"success": true,
		"message": "Benchmark data added successfully.",
		"id":      b.ID,
	})
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.Svc.List(c.Request.Context(), c.Query("industry"), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to list benchmarks", nil)
		return
	}
	respond.OK(c, rows)
}
