package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MessageBoard/internal/services"
)

// MessageHandler 消息处理器
type MessageHandler struct {
	messageService *services.MessageService
	errors         *ErrorRenderer
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageService *services.MessageService, errors *ErrorRenderer) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		errors:         errors,
	}
}

// GetMessages GET /message：最近 10 条消息，新消息在前
func (h *MessageHandler) GetMessages(c *gin.Context) {
	messages, err := h.messageService.ListRecent(c.Request.Context())
	if err != nil {
		h.errors.Render(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// CreateMessage PUT /message：成功返回 201，空响应体
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req services.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.Render(c, bindingError(err))
		return
	}

	if _, err := h.messageService.Create(c.Request.Context(), &req); err != nil {
		h.errors.Render(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

// Health GET /health
func (h *MessageHandler) Health(c *gin.Context) {
	if err := h.messageService.Health(c.Request.Context()); err != nil {
		httpErr := h.errors.ToHTTPError(err)
		h.errors.Render(c, NewHTTPError(http.StatusServiceUnavailable, httpErr.Message))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
