package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/infrastructure/auth"
	"github.com/intlshop/backend/internal/interfaces/http/dto"
)

// RequireRole allows the request only when the JWT carries role. It must run
// after JWTAuth.
func RequireRole(role string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			denyAccess(c, log, role, "No authentication claims found")
			return
		}
		if !claims.HasRole(role) {
			denyAccess(c, log, role, "User lacks required role")
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireRole for the admin role
func RequireAdmin(log *zap.Logger) gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin, log)
}

func denyAccess(c *gin.Context, log *zap.Logger, role, reason string) {
	userID, _ := GetJWTUserID(c)
	log.Warn("Permission denied",
		zap.String("reason", reason),
		zap.Int64("user_id", userID),
		zap.String("required_role", role),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeForbidden, "Access denied: insufficient role", GetRequestID(c)))
}
