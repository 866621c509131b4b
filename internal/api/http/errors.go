package http

import (
	"errors"
	"net/http"

	"github.com/cubiclauncher/kepler/internal/api/middleware"
	"github.com/cubiclauncher/kepler/internal/domain/app"
	"github.com/cubiclauncher/kepler/internal/infrastructure/resilience"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps a state manager error to an HTTP status and a stable code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrEmptyVersion):
		return http.StatusBadRequest, "empty_version"
	case errors.Is(err, app.ErrInvalidVersionFormat):
		return http.StatusBadRequest, "invalid_version_format"
	case errors.Is(err, app.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, app.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusBadGateway, "presence_unavailable"
	case errors.Is(err, app.ErrPresence):
		return http.StatusBadGateway, "presence_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: middleware.RequestID(c),
	})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:     "invalid request body",
		Code:      "invalid_request",
		RequestID: middleware.RequestID(c),
	})
}
