package deals

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

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

// RegisterRoutes attaches deal routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/deals", h.create)
	rg.GET("/deals", h.list)
	rg.GET("/deals/:id", h.get)
	rg.GET("/deals/:id/documents", h.documents)
}

type createRequest struct {
	DealName string `json:"dealName"`
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createRequest
	_ = c.ShouldBindJSON(&req)

	d, err := h.Svc.Create(c.Request.Context(), userID, req.DealName)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "invalid_argument", "A 'dealName' must be provided.", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal", "Firestore write failed while creating deal.", nil)
		}
		return
	}

	c.Set("dealId", d.ID)
	respond.JSON(c, http.StatusCreated, gin.H{
		"dealId":  d.ID,
		"message": "Deal created successfully.",
	})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	d, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		WriteError(c, err, "failed to fetch deal")
		return
	}
	respond.OK(c, toResponse(d))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to list deals", nil)
		return
	}
	resp := make([]DealResponse, 0, len(items))
	for _, d := range items {
		resp = append(resp, toResponse(d))
	}
	respond.OK(c, resp)
}

func (h *Handler) documents(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	docs, err := h.Svc.Documents(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		WriteError(c, err, "failed to list documents")
		return
	}
	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, ToDocumentResponse(doc))
	}
	respond.OK(c, resp)
}

// WriteError maps deal lookup and access errors to responses.
func WriteError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ErrPermissionDenied):
		respond.Error(c, http.StatusForbidden, "permission_denied", "You do not have access to this deal.", nil)
	case errors.Is(err, ErrRunInProgress), errors.Is(err, ErrRunQueued):
		respond.Error(c, http.StatusConflict, "run_in_progress", "An analysis is already running for this deal.", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", fallback, nil)
	}
}
