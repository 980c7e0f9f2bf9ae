package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/services"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	documentService *services.DocumentService
	logger          *zap.Logger
}

func NewDocumentHandler(documentService *services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger.With(zap.String("handler", "document")),
	}
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.documentService.ListDocuments(c.Request.Context(), companyID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, docs)
}

// GetDocument includes the stored sign-offs, newest first.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.documentService.GetDocument(ctx, companyID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	signOffs, err := h.documentService.ListSignOffs(ctx, doc.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc.SignOffs = signOffs
	response.Success(c, doc)
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := h.documentService.DeleteDocument(c.Request.Context(), companyID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("Document deleted", zap.String("doc_id", id), zap.String("user_id", userID(c)))
	response.Success(c, gin.H{"id": id})
}

// ownDocument checks the document belongs to the caller's company before
// touching its sign-offs, which are keyed by document id alone.
func (h *DocumentHandler) ownDocument(c *gin.Context) (string, bool) {
	doc, err := h.documentService.GetDocument(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	return doc.ID, true
}

func (h *DocumentHandler) ListSignOffs(c *gin.Context) {
	id, ok := h.ownDocument(c)
	if !ok {
		return
	}
	signOffs, err := h.documentService.ListSignOffs(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, signOffs)
}

func (h *DocumentHandler) DeleteSignOff(c *gin.Context) {
	id, ok := h.ownDocument(c)
	if !ok {
		return
	}
	if err := h.documentService.DeleteSignOff(c.Request.Context(), id, c.Param("signOffID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("signOffID")})
}
