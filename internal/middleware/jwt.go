package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andriyansah/school-api/internal/service"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
	"github.com/andriyansah/school-api/pkg/response"
)

// ContextUserKey is the gin context key storing the resolved principal.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token. The token is
// resolved to a live account so role and school binding reflect the
// database, not stale claims.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		principal, err := authService.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, principal)
		c.Next()
	}
}
