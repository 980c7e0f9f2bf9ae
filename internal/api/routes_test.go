package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swms-manager/internal/api/response"
	"github.com/swms-manager/internal/catalog"
	"github.com/swms-manager/internal/config"
	"github.com/swms-manager/internal/db"
	"github.com/swms-manager/internal/realtime"
	"github.com/swms-manager/internal/render"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/workspace"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.InitializeDefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "swms.db")
	conn, err := db.Initialize(cfg, zap.NewNop())
	require.NoError(t, err)

	log := zap.NewNop()
	mc := metrics.NewMetricsCollector()
	cat, err := catalog.New(log)
	require.NoError(t, err)
	broker := realtime.NewMemoryBroker(log)
	t.Cleanup(func() { _ = broker.Close() })

	docs := services.NewDocumentService(conn, broker, cat, log, mc)
	exports := services.NewExportService(docs, render.LocalQR{}, "https://swms.example", 200, nil, log, mc)
	router := NewRouter(log, mc, Deps{
		Auth:         services.NewAuthService(conn, cfg.Security, log, mc),
		Companies:    services.NewCompanyService(conn, log),
		Users:        services.NewUserService(conn, log),
		Documents:    docs,
		SignOffs:     services.NewSignOffService(docs, log, mc),
		Exports:      exports,
		Catalog:      cat,
		Registry:     workspace.NewRegistry(docs, cat, log, mc),
		Broker:       broker,
		SignOffRate:  100,
		SignOffBurst: 100,
	})
	router.SetupRoutes()
	return &testServer{t: t, engine: router.GetEngine()}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) response.Response {
	t.Helper()
	raw := struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return response.Response{Code: raw.Code, Message: raw.Message}
}

func (s *testServer) signIn() {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register", services.RegisterRequest{
		Email: "sam@acme.example", Password: "s3cure-pass", FullName: "Sam Lee", CompanyName: "Acme Builders",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "sam@acme.example", "password": "s3cure-pass"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	decode(s.t, w, &login)
	require.NotEmpty(s.t, login.Token)
	s.token = login.Token
}

type stateView struct {
	View  string `json:"view"`
	Draft struct {
		ID       string `json:"id"`
		JobSteps []struct {
			ID int64 `json:"id"`
		} `json:"jobSteps"`
	} `json:"draft"`
	Saved []struct {
		ID          string `json:"id"`
		ProjectName string `json:"projectName"`
	} `json:"saved"`
}

// createDocument drives the workspace through the Warehouse Fitout scenario.
func (s *testServer) createDocument() string {
	s.t.Helper()
	require.Equal(s.t, http.StatusOK, s.do(http.MethodPost, "/api/workspace/new", nil).Code)
	w := s.do(http.MethodPatch, "/api/workspace/fields", gin.H{
		"projectName": "Warehouse Fitout", "location": "12 Dock Rd", "supervisor": "Sam Lee",
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/workspace/steps", gin.H{"templates": []string{"excavation"}})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/workspace/save", nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var saved struct {
		Result workspace.SaveResult `json:"result"`
		State  stateView            `json:"state"`
	}
	decode(s.t, w, &saved)
	require.True(s.t, saved.Result.Saved)
	require.Len(s.t, saved.State.Saved, 1)
	return saved.Result.ID
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", nil).Code)
}

func TestAuthenticatedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/swms", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeUnauthorized, decode(t, w, nil).Code)
}

func TestWorkspaceSaveFlow(t *testing.T) {
	s := newTestServer(t)
	s.signIn()

	w := s.do(http.MethodPost, "/api/workspace/new", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/workspace/save", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var missing struct {
		Missing []string `json:"missing"`
	}
	decode(t, w, &missing)
	assert.Contains(t, missing.Missing, "projectName")

	w = s.do(http.MethodPatch, "/api/workspace/fields", gin.H{"bogus": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/workspace/cancel", nil).Code)
	id := s.createDocument()

	w = s.do(http.MethodGet, "/api/swms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var docs []struct {
		ID       string        `json:"id"`
		JobSteps []interface{} `json:"jobSteps"`
	}
	decode(t, w, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Len(t, docs[0].JobSteps, 1)

	w = s.do(http.MethodGet, "/api/workspace/export.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	// a newly saved document stays open in the form
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/workspace/cancel", nil).Code)
	w = s.do(http.MethodPost, "/api/workspace/view/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state stateView
	decode(t, w, &state)
	assert.Equal(t, "view", state.View)

	// view -> view is not a legal transition
	w = s.do(http.MethodPost, "/api/workspace/view/"+id, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPublicSignOffAppearsAfterEdit(t *testing.T) {
	s := newTestServer(t)
	s.signIn()
	id := s.createDocument()

	page := s.do(http.MethodGet, "/sign-off/"+id, nil)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Warehouse Fitout")
	assert.Contains(t, page.Body.String(), "<form")

	w := s.form("/sign-off/"+id, url.Values{"workerName": {"Jo Park"}, "workerPosition": {"Labourer"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign-Off Complete")
	// only the inputs reset; the form stays up for the next worker
	assert.Contains(t, w.Body.String(), "<form")
	assert.Contains(t, w.Body.String(), `name="workerName" value=""`)
	assert.NotContains(t, w.Body.String(), `value="Jo Park"`)

	w = s.form("/sign-off/"+id, url.Values{"workerName": {"No Position"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `value="No Position"`)

	req := httptest.NewRequest(http.MethodPost, "/sign-off/"+id, strings.NewReader("workerName=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "could not be read")

	w = s.do(http.MethodPost, "/api/public/swms/"+id+"/sign-offs", gin.H{"workerName": "Lee Tran", "workerPosition": "Electrician"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/workspace/cancel", nil).Code)
	w = s.do(http.MethodPost, "/api/workspace/edit/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		View  string `json:"view"`
		Draft struct {
			SignOffs []struct {
				Name   string `json:"name"`
				Method string `json:"method"`
			} `json:"signOffs"`
		} `json:"draft"`
	}
	decode(t, w, &state)
	assert.Equal(t, "form", state.View)
	require.Len(t, state.Draft.SignOffs, 2)
	assert.Equal(t, "qr", state.Draft.SignOffs[0].Method)

	// saving twice must not duplicate sign-off rows
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/workspace/save", nil).Code)
	w = s.do(http.MethodGet, "/api/swms/"+id+"/sign-offs", nil)
	var signOffs []interface{}
	decode(t, w, &signOffs)
	assert.Len(t, signOffs, 2)
}

func TestPublicSignOffUnknownDocument(t *testing.T) {
	s := newTestServer(t)

	page := s.do(http.MethodGet, "/sign-off/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, page.Code)
	assert.Contains(t, page.Body.String(), "Document Not Found")
	assert.NotContains(t, page.Body.String(), "<form")

	w := s.form("/sign-off/does-not-exist", url.Values{"workerName": {"Jo"}, "workerPosition": {"Labourer"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/public/swms/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/public/swms/does-not-exist/qr.png", nil).Code)
}

func TestExports(t *testing.T) {
	s := newTestServer(t)
	s.signIn()
	id := s.createDocument()

	w := s.do(http.MethodGet, "/api/swms/"+id+"/export.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "SWMS_Warehouse_Fitout_")

	w = s.do(http.MethodGet, "/api/swms/"+id+"/poster.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "QR_SignOff_Warehouse_Fitout.png")

	// archiving is not configured in this server
	w = s.do(http.MethodGet, "/api/swms/"+id+"/export.pdf?archive=1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/api/public/swms/"+id+"/qr.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestRiskLevelsAndTemplates(t *testing.T) {
	s := newTestServer(t)
	s.signIn()

	w := s.do(http.MethodGet, "/api/risk-levels", nil)
	var levels []struct {
		Rank  string `json:"rank"`
		Label string `json:"label"`
		Color string `json:"color"`
	}
	decode(t, w, &levels)
	require.Len(t, levels, 4)
	assert.Equal(t, "Extreme", levels[0].Label)
	assert.Equal(t, "#dc2626", levels[0].Color)
	assert.Equal(t, "Low", levels[3].Label)

	w = s.do(http.MethodGet, "/api/templates/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t)
	s.signIn()
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/me", nil).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/me", nil).Code)
}

func TestWorkspaceDeleteDocument(t *testing.T) {
	s := newTestServer(t)
	s.signIn()
	id := s.createDocument()
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/workspace/cancel", nil).Code)

	w := s.do(http.MethodDelete, "/api/workspace/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var state stateView
	decode(t, w, &state)
	assert.Equal(t, "list", state.View)
	assert.Empty(t, state.Saved)

	w = s.do(http.MethodDelete, "/api/workspace/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/workspace/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.Empty(t, state.Saved)
}
