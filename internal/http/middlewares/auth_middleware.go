package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/actorctx"
	"github.com/geocoder89/chathub/internal/auth"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth accepts only an Authorization: Bearer header.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.requireAuth(false)
}

// RequireAuthOrQuery also accepts ?access_token=, since browsers cannot set
// headers on a websocket upgrade.
func (m *AuthMiddleware) RequireAuthOrQuery() gin.HandlerFunc {
	return m.requireAuth(true)
}

func (m *AuthMiddleware) requireAuth(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			raw = strings.TrimSpace(c.Query("access_token"))
			ok = raw != ""
		}

		if !ok {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		caller := access.Caller{UserID: claims.UserID, Role: user.Role(claims.Role)}

		// Stash the identity on both contexts: handlers read gin's, stores and
		// loggers read the request's.
		c.Set(CtxCaller, caller)
		c.Request = c.Request.WithContext(actorctx.WithCaller(c.Request.Context(), caller))

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return raw, raw != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// CallerFromContext returns the anonymous caller when auth did not run.
func CallerFromContext(c *gin.Context) access.Caller {
	v, ok := c.Get(CtxCaller)
	if !ok {
		return access.Caller{}
	}
	caller, _ := v.(access.Caller)
	return caller
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	caller := CallerFromContext(c)
	return caller.UserID, caller.Authenticated()
}
