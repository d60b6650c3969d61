package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bookingcore/internal/pkg/jwt"
	"bookingcore/internal/pkg/response"
)

// JWTAuth puts user_id and role from a valid bearer token into the context.
func JWTAuth(j *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Missing Authorization header")
			return
		}

		tokenStr, ok := strings.CutPrefix(h, "Bearer ")
		tokenStr = strings.TrimSpace(tokenStr)
		if !ok || tokenStr == "" {
			response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be: Bearer <token>")
			return
		}

		claims, err := j.ValidateToken(tokenStr)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}
