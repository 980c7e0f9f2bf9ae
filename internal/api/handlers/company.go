package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/services"
	"go.uber.org/zap"
)

type CompanyHandler struct {
	companyService *services.CompanyService
	logger         *zap.Logger
}

func NewCompanyHandler(companyService *services.CompanyService, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
		logger:         logger.With(zap.String("handler", "company")),
	}
}

func (h *CompanyHandler) Get(c *gin.Context) {
	company, err := h.companyService.Summary(c.Request.Context(), userID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, company)
}

func (h *CompanyHandler) Update(c *gin.Context) {
	var upd services.CompanyUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		response.Fail(c, response.CodeBind, "", nil)
		return
	}
	company, err := h.companyService.Update(c.Request.Context(), companyID(c), upd)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("Company branding updated", zap.String("company_id", company.ID), zap.String("user_id", userID(c)))
	response.Success(c, company)
}
