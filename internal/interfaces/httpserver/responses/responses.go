package responses

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON error envelope returned on every non-2xx response.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail carries the human-readable message and a machine-readable type.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// HandleErrorWithStatus writes a typed error response with the given status code.
func HandleErrorWithStatus(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error: &ErrorDetail{
			Message: message,
			Type:    statusToErrorType(statusCode),
		},
	})
}

// statusToErrorType converts HTTP status code to error type string.
func statusToErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusConflict:
		return "conflict_error"
	case http.StatusTooManyRequests:
		return "rate_limited_error"
	default:
		return "internal_error"
	}
}
