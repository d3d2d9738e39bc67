package analyses

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/deals/:id/analyses", h.list)
	rg.POST("/deals/compare", h.compare)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	dealID := c.Param("id")
	c.Set("dealId", dealID)

	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.Svc.List(c.Request.Context(), userID, dealID, limit)
	if err != nil {
		deals.WriteError(c, err, "failed to list analyses")
		return
	}
	respond.OK(c, items)
}

type compareRequest struct {
	DealIDs []string `json:"dealIds"`
}

func (h *Handler) compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.DealIDs) == 0 {
		respond.Error(c, http.StatusBadRequest, "invalid_argument", "An array of 'dealIds' must be provided.", nil)
		return
	}
	items, err := h.Svc.Compare(c.Request.Context(), req.DealIDs)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to load comparison data", nil)
		return
	}
	respond.OK(c, gin.H{"success": true, "data": items})
}
