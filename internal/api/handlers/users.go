package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/services"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.With(zap.String("handler", "user")),
	}
}

func (uh *UserHandler) ShowProfile(c *gin.Context) {
	profile, err := uh.userService.Profile(c.Request.Context(), userID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

func (uh *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeBind, "", nil)
		return
	}
	profile, err := uh.userService.UpdateProfile(c.Request.Context(), userID(c), req.FullName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// ListUsers returns the members of the caller's company only.
func (uh *UserHandler) ListUsers(c *gin.Context) {
	users, err := uh.userService.ListCompanyUsers(c.Request.Context(), companyID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}
