package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/andriyansah/school-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// ListResult frames paginated collections inside the data payload.
type ListResult struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// JSON sends a success response with the given status and message.
func JSON(c *gin.Context, status int, message string, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// OK responds with HTTP 200.
func OK(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusOK, message, data)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, message, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, Envelope{Success: false, Message: appErr.Message})
}

// ValidationError sends a 400 response carrying field level details.
func ValidationError(c *gin.Context, message string, details interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: message, Errors: details})
}
