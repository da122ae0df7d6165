package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"support-chat/internal/llm"
	"support-chat/internal/repository"
	"support-chat/internal/service"
)

// ChatHandler mantiene dependencias para los endpoints de chat.
type ChatHandler struct {
	logger  *zap.Logger
	chatSvc *service.ChatService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chatSvc *service.ChatService) *ChatHandler {
	return &ChatHandler{logger: logger, chatSvc: chatSvc}
}

// PostMessage maneja POST /chat/message.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}

	result, err := h.chatSvc.HandleMessage(c.Request.Context(), req.Message, req.SessionID)
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	case errors.Is(err, service.ErrMessageTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message too long"})
		return
	case errors.Is(err, repository.ErrUnknownConversation):
		// Un sessionId de reanudación que no existe es problema del caller.
		h.logger.Warn("unknown session", zap.String("session_id", req.SessionID))
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	case errors.Is(err, llm.ErrAllProvidersFailed):
		h.logger.Error("reply generation exhausted all providers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate reply"})
		return
	case err != nil:
		h.logger.Error("handle message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetHistory maneja GET /chat/history/:sessionId.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	sessionID := c.Param("sessionId")

	entries, err := h.chatSvc.History(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("fetch history failed", zap.Error(err), zap.String("session_id", sessionID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": entries})
}

// Health maneja GET /health.
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
