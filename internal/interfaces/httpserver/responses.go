package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tetkool/concierge/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details.
type ErrorResponse struct {
	Code      string `json:"code,omitempty"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError maps err to a status code and aborts the request.
func HandleError(c *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		c.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(platformErr.GetErrorType()), ErrorResponse{
			Code:      platformErr.UUID,
			Error:     message,
			RequestID: platformErr.RequestID,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:     message,
		RequestID: platformerrors.RequestIDFromContext(c.Request.Context()),
	})
}

// HandleNewError creates a typed error at the route layer and aborts the request.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message string, cause error) {
	HandleError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerRoute, errorType, message, cause), message)
}
