package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Corona-HomeLab/FinSight/internal/assistant"
	"github.com/Corona-HomeLab/FinSight/internal/pkg/errcode"
	"github.com/Corona-HomeLab/FinSight/internal/pkg/response"
)

type ChatHandler struct {
	assistant *assistant.Assistant
}

func NewChatHandler(a *assistant.Assistant) *ChatHandler {
	return &ChatHandler{assistant: a}
}

type chatRequest struct {
	Question string `json:"question"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.assistant.Chat(c.Request.Context(), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"answer": answer})
}

func (h *ChatHandler) History(c *gin.Context) {
	response.Success(c, gin.H{"turns": h.assistant.History()})
}
