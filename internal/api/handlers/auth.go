package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/middleware"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/services"
	"go.uber.org/zap"
)

// WorkspaceDropper discards a user's in-memory workspace on logout.
type WorkspaceDropper interface {
	Drop(userID string)
}

type AuthHandler struct {
	authService  *services.AuthService
	workspaces   WorkspaceDropper
	cookieSecure bool
	logger       *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, workspaces WorkspaceDropper, cookieSecure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		workspaces:   workspaces,
		cookieSecure: cookieSecure,
		logger:       logger.With(zap.String("handler", "auth")),
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ah *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeBind, "", nil)
		return
	}
	user, err := ah.authService.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Response{
		Code:    response.CodeSuccess,
		Message: "registered",
		Data: gin.H{
			"id":        user.ID,
			"email":     user.Email,
			"companyId": user.CompanyID,
		},
	})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeBind, "email and password are required", nil)
		return
	}

	result, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		ah.logger.Warn("Login failed", zap.String("client_ip", c.ClientIP()), zap.Error(err))
		response.Error(c, err)
		return
	}

	maxAge := int(time.Until(result.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, result.Token, maxAge, "/", "", ah.cookieSecure, true)
	response.Success(c, gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"userId":    result.User.ID,
		"companyId": result.User.CompanyID,
	})
}

// Logout revokes the session if there is one and always clears the cookie.
func (ah *AuthHandler) Logout(c *gin.Context) {
	token := middleware.SessionToken(c)
	if token != "" {
		ctx := c.Request.Context()
		if claims, err := ah.authService.ValidateToken(ctx, token); err == nil {
			ah.workspaces.Drop(claims.UserID)
		}
		if err := ah.authService.Logout(ctx, token); err != nil && !errors.Is(err, services.ErrInvalidSession) {
			response.Error(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", ah.cookieSecure, true)
	response.Success(c, nil)
}
