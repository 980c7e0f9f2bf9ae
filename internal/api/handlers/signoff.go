package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/swms"
	"go.uber.org/zap"
)

// SignOffHandler serves the unauthenticated page workers reach by scanning the poster.
type SignOffHandler struct {
	signOffService *services.SignOffService
	exportService  *services.ExportService
	logger         *zap.Logger
}

func NewSignOffHandler(signOffService *services.SignOffService, exportService *services.ExportService, logger *zap.Logger) *SignOffHandler {
	return &SignOffHandler{
		signOffService: signOffService,
		exportService:  exportService,
		logger:         logger.With(zap.String("handler", "signoff")),
	}
}

type stepView struct {
	swms.JobStep
	Initial  swms.RiskLevel
	Residual swms.RiskLevel
}

type signOffPage struct {
	Title   string
	Doc     services.PublicDocument
	Steps   []stepView
	Form    swms.WorkerSubmission
	Success string
	Error   string
}

func newSignOffPage(doc services.PublicDocument) signOffPage {
	steps := make([]stepView, 0, len(doc.JobSteps))
	for _, s := range doc.JobSteps {
		steps = append(steps, stepView{JobStep: s, Initial: swms.LookupRisk(s.InitialRisk), Residual: swms.LookupRisk(s.ResidualRisk)})
	}
	title := "SWMS Sign-Off"
	if doc.ProjectName != "" {
		title = doc.ProjectName + " - " + title
	}
	return signOffPage{Title: title, Doc: doc, Steps: steps}
}

// renderMissing is the terminal state for an unknown document: no form is shown.
func (h *SignOffHandler) renderMissing(c *gin.Context, err error) {
	if errors.Is(err, services.ErrNotFound) {
		c.HTML(http.StatusNotFound, "not_found.html", gin.H{"Title": "Document Not Found"})
		return
	}
	h.logger.Error("Failed to load SWMS document", zap.String("doc_id", c.Param("id")), zap.Error(err))
	c.HTML(http.StatusInternalServerError, "error.html", gin.H{
		"Title":   "Error",
		"Message": "Failed to load SWMS document",
	})
}

func (h *SignOffHandler) ShowPage(c *gin.Context) {
	doc, err := h.signOffService.PublicDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderMissing(c, err)
		return
	}
	c.HTML(http.StatusOK, "signoff.html", newSignOffPage(doc))
}

// SubmitForm accepts any number of submissions; after success only the inputs are reset.
func (h *SignOffHandler) SubmitForm(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.signOffService.PublicDocument(ctx, c.Param("id"))
	if err != nil {
		h.renderMissing(c, err)
		return
	}
	page := newSignOffPage(doc)

	var sub swms.WorkerSubmission
	if err := c.ShouldBind(&sub); err != nil {
		h.logger.Warn("Invalid sign-off form", zap.String("doc_id", doc.ID), zap.Error(err))
		page.Error = "Your sign-off could not be read. Please try again."
		c.HTML(http.StatusBadRequest, "signoff.html", page)
		return
	}
	signed, err := h.signOffService.Submit(ctx, doc.ID, sub)
	switch {
	case errors.Is(err, swms.ErrValidation):
		page.Form = sub
		page.Error = "Please fill in your name and position"
		c.HTML(http.StatusBadRequest, "signoff.html", page)
	case err != nil:
		page.Form = sub
		page.Error = "Failed to save sign-off. Please try again."
		c.HTML(http.StatusInternalServerError, "signoff.html", page)
	default:
		page.Success = signed.WorkerName
		c.HTML(http.StatusOK, "signoff.html", page)
	}
}

func (h *SignOffHandler) GetDocument(c *gin.Context) {
	doc, err := h.signOffService.PublicDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *SignOffHandler) Submit(c *gin.Context) {
	var sub swms.WorkerSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.Fail(c, response.CodeBind, "", nil)
		return
	}
	signed, err := h.signOffService.Submit(c.Request.Context(), c.Param("id"), sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Response{Code: response.CodeSuccess, Message: "signed off", Data: signed})
}

func (h *SignOffHandler) QRCode(c *gin.Context) {
	png, err := h.exportService.QRCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, services.ContentTypePNG, png)
}
