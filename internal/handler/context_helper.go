package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/andriyansah/school-api/internal/middleware"
	"github.com/andriyansah/school-api/internal/models"
)

func principalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}
