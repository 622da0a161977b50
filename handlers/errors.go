package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"handyfix/services/apperror"
	"handyfix/services/chat"
	"handyfix/utils"
)

// ErrSessionNotFound is returned for requests naming an unknown or expired chat session.
var ErrSessionNotFound = errors.New("chat session not found")

// StatusFor maps a service error to the HTTP status returned to clients.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, chat.ErrUnknownSuggestion):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrComposing):
		return http.StatusConflict
	case errors.Is(err, chat.ErrSessionClosed):
		return http.StatusGone
	}
	if ce, ok := apperror.As(err); ok {
		switch ce.Kind {
		case apperror.KindConfiguration:
			return http.StatusServiceUnavailable
		case apperror.KindTransport:
			if ce.Status == http.StatusGatewayTimeout || apperror.IsTimeout(err) {
				return http.StatusGatewayTimeout
			}
			return http.StatusBadGateway
		case apperror.KindBackendLogic:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// AbortWithError writes err as a JSON error using StatusFor and the per-kind user message.
func AbortWithError(c *gin.Context, err error) {
	status := StatusFor(err)
	resp := utils.ErrorResponse{Message: err.Error()}
	if ce, ok := apperror.As(err); ok {
		resp.Kind = string(ce.Kind)
		resp.Message = apperror.UserMessage(err)
	}
	if status >= http.StatusInternalServerError {
		getLogger(c).Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}
