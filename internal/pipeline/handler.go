package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/server/respond"
)

// DealAccess checks that the caller may see the deal.
type DealAccess interface {
	Get(ctx context.Context, userID, dealID string) (deals.Deal, error)
}

// Handler exposes on-demand analysis runs.
type Handler struct {
	Pipeline *Pipeline
	Access   DealAccess
}

func NewHandler(p *Pipeline, access DealAccess) *Handler {
	return &Handler{Pipeline: p, Access: access}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/deals/:id/analyze", h.analyzePath)
	rg.POST("/analysis/start", h.analyzeBody)
}

type startRequest struct {
	DealID string `json:"dealId"`
}

func (h *Handler) analyzePath(c *gin.Context) {
	h.analyze(c, c.Param("id"))
}

func (h *Handler) analyzeBody(c *gin.Context) {
	var req startRequest
	_ = c.ShouldBindJSON(&req)
	h.analyze(c, strings.TrimSpace(req.DealID))
}

func (h *Handler) analyze(c *gin.Context, dealID string) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "Authentication is required.", nil)
		return
	}
	if dealID == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_argument", "A 'dealId' must be provided.", nil)
		return
	}
	ctx := c.Request.Context()
	if rid, ok := c.Get("requestId"); ok {
		if s, ok := rid.(string); ok {
			ctx = WithRequestID(ctx, s)
		}
	}

	if h.Access != nil {
		if _, err := h.Access.Get(ctx, userID, dealID); err != nil {
			deals.WriteError(c, err, "An error occurred during the analysis.")
			return
		}
	}

	res, err := h.Pipeline.Run(ctx, RunInput{
		DealID:     dealID,
		UserID:     userID,
		FailStatus: deals.StatusAnalysisFailed,
	})
	if err != nil {
		if errors.Is(err, deals.ErrRunInProgress) || errors.Is(err, deals.ErrRunSuperseded) {
			deals.WriteError(c, deals.ErrRunInProgress, "")
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "An error occurred during the analysis.", gin.H{"details": err.Error()})
		return
	}
	respond.OK(c, gin.H{
		"success":    true,
		"message":    "Analysis completed successfully.",
		"analysisId": res.AnalysisID,
	})
}
