package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Corona-HomeLab/FinSight/internal/pkg/errcode"
	apperr "github.com/Corona-HomeLab/FinSight/internal/pkg/errors"
	"github.com/Corona-HomeLab/FinSight/internal/pkg/response"
)

// handleError maps domain sentinels to wire error codes. Internal detail
// stays in the log; the client gets a stable code and a short message.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case apperr.IsValidation(err):
		response.Error(c, errcode.ErrValidation, err.Error())
	case apperr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, apperr.ErrFetch):
		response.Error(c, errcode.ErrUpstreamFailed, "source fetch failed")
	case errors.Is(err, apperr.ErrFormat):
		response.Error(c, errcode.ErrBadUpstreamData, "source returned malformed data")
	case errors.Is(err, apperr.ErrIndex):
		response.Error(c, errcode.ErrIndexFailed, "indexing failed")
	case errors.Is(err, apperr.ErrGeneration):
		response.Error(c, errcode.ErrAIUnavailable, "answer generation failed")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
