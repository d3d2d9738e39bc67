package uploads

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/pipeline"
	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/server/respond"
	"sealdeal-backend/internal/shared/telemetry"
	"sealdeal-backend/internal/shared/util"
)

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".pptx": {},
	".xlsx": {},
	".csv":  {},
	".json": {},
	".txt":  {},
	".md":   {},
}

type Handler struct {
	Svc *Service
	// Presign is nil when direct uploads are not configured.
	Presign Presigner
}

func NewHandler(svc *Service, presign Presigner) *Handler {
	return &Handler{Svc: svc, Presign: presign}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/deals/:id/documents", h.upload)
	rg.POST("/uploads/presign", h.presign)
}

func allowedFile(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	fh, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_argument", "A 'file' form field is required.", nil)
		return
	}
	if !allowedFile(fh.Filename) {
		respond.Error(c, http.StatusBadRequest, "invalid_argument", "Unsupported file type.", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_argument", "Could not read the uploaded file.", nil)
		return
	}
	defer f.Close()

	ctx := pipeline.WithRequestID(c.Request.Context(), c.GetString("requestId"))
	doc, err := h.Svc.Upload(ctx, UploadInput{
		UserID:      userID,
		DealID:      c.Param("id"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "invalid_argument", "The file exceeds the upload limit.", nil)
		case errors.Is(err, ErrInvalidFile):
			respond.Error(c, http.StatusBadRequest, "invalid_argument", "invalid fileName", nil)
		default:
			telemetry.Error("upload.failed", map[string]any{"deal_id": c.Param("id"), "error": err, "request_id": c.GetString("requestId")})
			deals.WriteError(c, err, "failed to store upload")
		}
		return
	}
	respond.JSON(c, http.StatusAccepted, deals.ToDocumentResponse(doc))
}

type presignRequest struct {
	DealID      string `json:"dealId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	Key              string `json:"key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) presign(c *gin.Context) {
	if h.Presign == nil {
		respond.Error(c, http.StatusServiceUnavailable, "unavailable", "uploads not configured", nil)
		return
	}
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.DealID = strings.TrimSpace(req.DealID)
	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.DealID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "A 'dealId' must be provided.", nil)
		return
	}
	if req.FileName == "" || !allowedFile(req.FileName) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required and must be a supported type", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > h.Svc.maxBytes() {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	if _, err := h.Svc.Deals.Get(c.Request.Context(), userID, req.DealID); err != nil {
		deals.WriteError(c, err, "failed to fetch deal")
		return
	}
	sanitized, err := util.SanitizeFileName(req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}
	key := Key{UserID: userID, DealID: req.DealID, FileName: sanitized}.String()

	url, err := h.Presign.PresignPut(c.Request.Context(), key, req.ContentType, presignExpires)
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"error":       err,
			"key":         key,
			"contentType": req.ContentType,
			"sizeBytes":   req.SizeBytes,
			"request_id":  c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        url,
		Key:              key,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}
