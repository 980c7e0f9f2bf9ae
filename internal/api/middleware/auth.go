package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/utils"
)

const (
	SessionCookie = "session_token"

	ContextUserID    = "userID"
	ContextCompanyID = "companyID"
	ContextRole      = "role"
	ContextClaims    = "claims"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*services.Claims, error)
}

type AuthMiddleware struct {
	auth TokenValidator
}

func NewAuthMiddleware(auth TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// SessionToken reads the cookie first and falls back to a bearer header.
func SessionToken(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}
	return utils.BearerToken(c.GetHeader("Authorization"))
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(SessionToken(c))
		if token == "" {
			response.Fail(c, response.CodeUnauthorized, "", nil)
			return
		}

		claims, err := am.auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Fail(c, response.CodeUnauthorized, "session expired, please sign in again", nil)
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextCompanyID, claims.CompanyID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}
