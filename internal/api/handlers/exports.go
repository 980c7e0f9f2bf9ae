package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/services"
	"go.uber.org/zap"
)

const archiveHeader = "X-Archive-Location"

type ExportHandler struct {
	exportService *services.ExportService
	companies     CompanyLookup
	logger        *zap.Logger
}

func NewExportHandler(exportService *services.ExportService, companies CompanyLookup, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		companies:     companies,
		logger:        logger.With(zap.String("handler", "export")),
	}
}

func (h *ExportHandler) DocumentPDF(c *gin.Context) {
	company, err := currentCompany(c, h.companies)
	if err != nil {
		response.Error(c, err)
		return
	}
	exp, err := h.exportService.DocumentPDF(c.Request.Context(), company, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, exp)
}

func (h *ExportHandler) PosterPNG(c *gin.Context) { h.poster(c, services.PosterPNG) }
func (h *ExportHandler) PosterPDF(c *gin.Context) { h.poster(c, services.PosterPDF) }

func (h *ExportHandler) poster(c *gin.Context, format services.PosterFormat) {
	company, err := currentCompany(c, h.companies)
	if err != nil {
		response.Error(c, err)
		return
	}
	exp, err := h.exportService.Poster(c.Request.Context(), company, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, exp)
}

// send writes the artifact as a download, archiving it first when ?archive=1.
func (h *ExportHandler) send(c *gin.Context, exp services.Export) {
	if archive, _ := strconv.ParseBool(c.Query("archive")); archive {
		loc, err := h.exportService.Archive(c.Request.Context(), companyID(c), exp)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header(archiveHeader, loc)
	}
	c.Header("Content-Disposition", `attachment; filename="`+exp.FileName+`"`)
	c.Data(http.StatusOK, exp.ContentType, exp.Data)
}
