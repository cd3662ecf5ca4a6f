package middlewares

import (
	"net/http"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

func (m *AuthMiddleware) RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFromContext(c)

		if !caller.Authenticated() {
			abortUnauthorized(c, "Missing identity context")
			return
		}

		if access.RequireRole(caller, required) != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":      "forbidden",
					"message":   string(required) + " role required",
					"requestId": c.GetString(CtxRequestID),
				},
			})
			return
		}
		c.Next()
	}
}
