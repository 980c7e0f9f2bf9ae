package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/catalog"
	"github.com/swms-manager/internal/swms"
)

type TemplateHandler struct {
	catalog *catalog.Catalog
}

func NewTemplateHandler(c *catalog.Catalog) *TemplateHandler {
	return &TemplateHandler{catalog: c}
}

// List returns every template, or one category with ?category=.
func (h *TemplateHandler) List(c *gin.Context) {
	all := h.catalog.List()
	category := c.Query("category")
	if category == "" {
		response.Success(c, all)
		return
	}
	filtered := make([]swms.Template, 0, len(all))
	for _, t := range all {
		if t.Category == category {
			filtered = append(filtered, t)
		}
	}
	response.Success(c, filtered)
}

func (h *TemplateHandler) Categories(c *gin.Context) {
	response.Success(c, h.catalog.Categories())
}

func (h *TemplateHandler) RiskLevels(c *gin.Context) {
	response.Success(c, swms.RiskLevels())
}
