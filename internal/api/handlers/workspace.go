package handlers

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/catalog"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/internal/workspace"
	"go.uber.org/zap"
)

// WorkspaceHandler exposes the per-user form state store over JSON. Every
// mutating call answers with the full workspace state.
type WorkspaceHandler struct {
	registry        *workspace.Registry
	companies       CompanyLookup
	documentService *services.DocumentService
	exportService   *services.ExportService
	catalog         *catalog.Catalog
	logger          *zap.Logger
}

func NewWorkspaceHandler(
	registry *workspace.Registry,
	companies CompanyLookup,
	documentService *services.DocumentService,
	exportService *services.ExportService,
	catalog *catalog.Catalog,
	logger *zap.Logger,
) *WorkspaceHandler {
	return &WorkspaceHandler{
		registry:        registry,
		companies:       companies,
		documentService: documentService,
		exportService:   exportService,
		catalog:         catalog,
		logger:          logger.With(zap.String("handler", "workspace")),
	}
}

func (h *WorkspaceHandler) store(c *gin.Context) (*workspace.Store, bool) {
	company, err := currentCompany(c, h.companies)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return h.registry.Get(c.Request.Context(), userID(c), company), true
}

// apply runs fn against the caller's store and answers with the new state.
func (h *WorkspaceHandler) apply(c *gin.Context, fn func(ctx context.Context, s *workspace.Store) error) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), s); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s.State())
}

func (h *WorkspaceHandler) State(c *gin.Context) {
	h.apply(c, func(context.Context, *workspace.Store) error { return nil })
}

func (h *WorkspaceHandler) StartNew(c *gin.Context) {
	h.apply(c, func(_ context.Context, s *workspace.Store) error { return s.StartNew() })
}

func (h *WorkspaceHandler) StartEdit(c *gin.Context) {
	h.apply(c, func(ctx context.Context, s *workspace.Store) error {
		doc, err := h.documentService.GetDocument(ctx, companyID(c), c.Param("id"))
		if err != nil {
			return err
		}
		return s.StartEdit(ctx, doc)
	})
}

func (h *WorkspaceHandler) Open(c *gin.Context) {
	h.apply(c, func(ctx context.Context, s *workspace.Store) error {
		doc, err := h.documentService.GetDocument(ctx, companyID(c), c.Param("id"))
		if err != nil {
			return err
		}
		if signOffs, err := h.documentService.ListSignOffs(ctx, doc.ID); err == nil {
			doc.SignOffs = signOffs
		} else {
			h.logger.Warn("Failed to load sign-offs for view", zap.String("doc_id", doc.ID), zap.Error(err))
		}
		return s.Open(doc)
	})
}

func (h *WorkspaceHandler) Cancel(c *gin.Context) {
	h.apply(c, func(_ context.Context, s *workspace.Store) error { return s.Cancel() })
}

func (h *WorkspaceHandler) Reload(c *gin.Context) {
	h.apply(c, func(ctx context.Context, s *workspace.Store) error { return s.Reload(ctx) })
}

func (h *WorkspaceHandler) DeleteDocument(c *gin.Context) {
	h.apply(c, func(ctx context.Context, s *workspace.Store) error { return s.Delete(ctx, c.Param("id")) })
}

// bindFields reads a flat {"field": "value"} body.
func bindFields(c *gin.Context) (map[string]string, bool) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.Fail(c, response.CodeBind, "expected an object of string fields", nil)
		return nil, false
	}
	return fields, true
}

// eachField applies fields in a stable order so a failing field is reported deterministically.
func eachField(fields map[string]string, set func(name, value string) error) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := set(name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func (h *WorkspaceHandler) updateFields(c *gin.Context, set func(s *workspace.Store) func(name, value string) error) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}
	h.apply(c, func(_ context.Context, s *workspace.Store) error {
		return eachField(fields, set(s))
	})
}

func (h *WorkspaceHandler) UpdateFields(c *gin.Context) {
	h.updateFields(c, func(s *workspace.Store) func(string, string) error { return s.UpdateField })
}

func (h *WorkspaceHandler) UpdateCompany(c *gin.Context) {
	h.updateFields(c, func(s *workspace.Store) func(string, string) error { return s.UpdateCompanyField })
}

func (h *WorkspaceHandler) UpdateEmergency(c *gin.Context) {
	h.updateFields(c, func(s *workspace.Store) func(string, string) error { return s.UpdateEmergencyField })
}

type addStepsRequest struct {
	Templates []string `json:"templates" binding:"required,min=1"`
}

func (h *WorkspaceHandler) AddSteps(c *gin.Context) {
	var req addStepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeBind, "templates must list at least one key", nil)
		return
	}
	templates, err := h.catalog.Lookup(req.Templates)
	if err != nil {
		response.Fail(c, response.CodeValidation, err.Error(), nil)
		return
	}
	h.apply(c, func(_ context.Context, s *workspace.Store) error {
		s.AddJobStepsFromTemplates(templates)
		return nil
	})
}

func (h *WorkspaceHandler) AddCustomStep(c *gin.Context) {
	h.apply(c, func(_ context.Context, s *workspace.Store) error {
		s.AddCustomJobStep()
		return nil
	})
}

func stepID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("stepID"), 10, 64)
	if err != nil {
		response.Fail(c, response.CodeBind, "invalid step id", nil)
		return 0, false
	}
	return id, true
}

func (h *WorkspaceHandler) UpdateStep(c *gin.Context) {
	id, ok := stepID(c)
	if !ok {
		return
	}
	h.updateFields(c, func(s *workspace.Store) func(string, string) error {
		return func(name, value string) error { return s.UpdateJobStep(id, name, value) }
	})
}

func (h *WorkspaceHandler) RemoveStep(c *gin.Context) {
	id, ok := stepID(c)
	if !ok {
		return
	}
	h.apply(c, func(_ context.Context, s *workspace.Store) error {
		s.RemoveJobStep(id)
		return nil
	})
}

func (h *WorkspaceHandler) AddSignOff(c *gin.Context) {
	var entry workspace.SignOffEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		response.Fail(c, response.CodeBind, "", nil)
		return
	}
	h.apply(c, func(_ context.Context, s *workspace.Store) error {
		s.AddSignOff(entry)
		return nil
	})
}

func signOffRef(c *gin.Context) (swms.SignOffRef, bool) {
	ref, err := swms.ParseSignOffRef(c.Param("ref"))
	if err != nil {
		response.Fail(c, response.CodeBind, err.Error(), nil)
		return swms.SignOffRef{}, false
	}
	return ref, true
}

func (h *WorkspaceHandler) UpdateSignOff(c *gin.Context) {
	ref, ok := signOffRef(c)
	if !ok {
		return
	}
	h.updateFields(c, func(s *workspace.Store) func(string, string) error {
		return func(name, value string) error { return s.UpdateSignOff(ref, name, value) }
	})
}

func (h *WorkspaceHandler) RemoveSignOff(c *gin.Context) {
	ref, ok := signOffRef(c)
	if !ok {
		return
	}
	h.apply(c, func(ctx context.Context, s *workspace.Store) error {
		return s.RemoveSignOff(ctx, ref)
	})
}

// Save reports a document-level failure as an error response; a sign-off
// failure after the document was written comes back as a warning.
func (h *WorkspaceHandler) Save(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	result := s.Save(c.Request.Context())
	if result.Err != nil && !result.Saved {
		code, msg, data := response.Classify(result.Err)
		if data == nil {
			data = gin.H{"state": s.State()}
		}
		response.Fail(c, code, msg, data)
		return
	}
	response.Success(c, gin.H{"result": result, "state": s.State()})
}

// ExportDraft renders the in-progress document, including unsaved sign-offs.
func (h *WorkspaceHandler) ExportDraft(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	draft := s.Snapshot()
	exp, err := h.exportService.RenderPDF(draft, s.Company(), draft.SignOffs)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exp.FileName+`"`)
	c.Data(http.StatusOK, exp.ContentType, exp.Data)
}
