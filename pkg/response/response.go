package response

import (
	"net/http"

	appErrors "github.com/charlesng35/notely/pkg/errors"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the failure envelope returned by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes {"success": true} merged with the supplied top-level fields.
func Success(c *gin.Context, statusCode int, fields gin.H) {
	payload := make(gin.H, len(fields)+1)
	for key, value := range fields {
		payload[key] = value
	}
	payload["success"] = true

	c.JSON(statusCode, payload)
}

// Message writes a success envelope that only carries a human readable message.
func Message(c *gin.Context, statusCode int, message string) {
	Success(c, statusCode, gin.H{"message": message})
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Success: false,
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}
