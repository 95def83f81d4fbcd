package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuth validates the Authorization header against the configured
// shared secret. All endpoints behind it fail uniformly with 401.
func BearerAuth(apiToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, gin.H{
				"error": gin.H{
					"code":    "MISSING_AUTHORIZATION",
					"message": "Authorization header is required",
				},
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(401, gin.H{
				"error": gin.H{
					"code":    "INVALID_AUTHORIZATION",
					"message": "Authorization header must be Bearer token",
				},
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(apiToken)) != 1 {
			c.AbortWithStatusJSON(401, gin.H{
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Invalid API token",
				},
			})
			return
		}

		c.Next()
	}
}
