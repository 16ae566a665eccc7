package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Corona-HomeLab/FinSight/internal/assistant"
	"github.com/Corona-HomeLab/FinSight/internal/pkg/errcode"
	"github.com/Corona-HomeLab/FinSight/internal/pkg/response"
	"github.com/Corona-HomeLab/FinSight/internal/registry"
)

type SourceHandler struct {
	assistant *assistant.Assistant
}

func NewSourceHandler(a *assistant.Assistant) *SourceHandler {
	return &SourceHandler{assistant: a}
}

type addSourceRequest struct {
	SourceID string `json:"source_id"`
	registry.AddInput
}

func (h *SourceHandler) Add(c *gin.Context) {
	var req addSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	src, err := h.assistant.AddSource(c.Request.Context(), req.SourceID, req.AddInput)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"source": src})
}

func (h *SourceHandler) List(c *gin.Context) {
	response.Success(c, gin.H{"sources": h.assistant.ListSources()})
}

func (h *SourceHandler) Remove(c *gin.Context) {
	sourceID := c.Param("id")
	if sourceID == "" {
		response.Error(c, errcode.ErrInvalid, "source id required")
		return
	}
	if err := h.assistant.RemoveSource(c.Request.Context(), sourceID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

func (h *SourceHandler) Refresh(c *gin.Context) {
	if err := h.assistant.Refresh(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}
