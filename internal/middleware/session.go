package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/olexam/portal-backend/internal/response"
	"github.com/olexam/portal-backend/internal/service"
)

// CheckSingleDeviceSession validates the JWT's JTI against the active login
// session in Redis. A mismatch means the session was reset or superseded
// and the request is rejected.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforce for student tokens.
		if claims.TokenType != service.TokenTypeStudent {
			c.Next()
			return
		}

		if err := authService.ValidateStudentSession(c.Request.Context(), claims.RollNumber, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
