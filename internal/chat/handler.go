package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/telemetry"
)

const genericError = "Sorry, I encountered an error processing your request."

// Handler serves both chat agents. Responses keep the flat {"error": ...}
// shape chat clients expect instead of the API error envelope.
type Handler struct {
	Chat  *Service
	Agent *Agent
}

func NewHandler(chat *Service, agent *Agent) *Handler {
	return &Handler{Chat: chat, Agent: agent}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.chat)
	rg.POST("/chat/enhanced", h.enhanced)
	rg.GET("/chat/sessions/:id", h.history)
}

// RegisterPublicRoutes attaches routes that need no identity.
func (h *Handler) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/chat/health", h.health)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	_ = c.ShouldBindJSON(&req)
	userID := middleware.UserIDFromContext(c)

	reply, err := h.Chat.Ask(c.Request.Context(), userID, req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidInput.Error()})
		case errors.Is(err, ErrOverloaded):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrOverloaded.Error()})
		case errors.Is(err, ErrNoWarehouse):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoWarehouse.Error()})
		default:
			telemetry.Error("chat.failed", map[string]any{"session_id": req.SessionID, "error": err, "request_id": c.GetString("requestId")})
			c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		}
		return
	}

	body := gin.H{"sql": reply.SQL, "formatted": reply.Formatted}
	if reply.Rows != nil {
		body["result"] = reply.Rows
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) enhanced(c *gin.Context) {
	var req chatRequest
	_ = c.ShouldBindJSON(&req)
	userID := middleware.UserIDFromContext(c)

	reply, err := h.Agent.Ask(c.Request.Context(), userID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidInput.Error()})
			return
		}
		telemetry.Error("chat.enhanced_failed", map[string]any{"session_id": req.SessionID, "error": err, "request_id": c.GetString("requestId")})
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError, "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) history(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	msgs, err := h.Chat.History(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "enhanced-chat-agent",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
