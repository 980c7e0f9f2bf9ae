package api

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/handlers"
	"github.com/swms-manager/internal/api/middleware"
	"github.com/swms-manager/internal/catalog"
	"github.com/swms-manager/internal/realtime"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/workspace"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps is everything the HTTP layer needs from the rest of the application.
type Deps struct {
	Auth      *services.AuthService
	Companies *services.CompanyService
	Users     *services.UserService
	Documents *services.DocumentService
	SignOffs  *services.SignOffService
	Exports   *services.ExportService
	Catalog   *catalog.Catalog
	Registry  *workspace.Registry
	Broker    realtime.Broker
	// DB health probe; nil skips the check.
	Ping func() error

	CookieSecure bool
	SignOffRate  float64
	SignOffBurst int
}

type Router struct {
	engine         *gin.Engine
	logger         *zap.Logger
	metrics        *metrics.MetricsCollector
	ping           func() error
	authHandler    *handlers.AuthHandler
	companyHandler *handlers.CompanyHandler
	userHandler    *handlers.UserHandler
	templHandler   *handlers.TemplateHandler
	docHandler     *handlers.DocumentHandler
	exportHandler  *handlers.ExportHandler
	wsHandler      *handlers.WorkspaceHandler
	signOffHandler *handlers.SignOffHandler
	eventsHandler  *handlers.EventsHandler
	authMiddleware *middleware.AuthMiddleware
	reqMiddleware  *middleware.RequestMiddleware
	logMiddleware  *middleware.LoggingMiddleware
	publicLimiter  *middleware.IPRateLimiter
}

func NewRouter(logger *zap.Logger, metrics *metrics.MetricsCollector, deps Deps) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	logMiddleware := middleware.NewLoggingMiddleware(logger, metrics)

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())
	engine.Use(logMiddleware.LogRequest())

	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html"))
	engine.SetHTMLTemplate(tmpl)

	return &Router{
		engine:         engine,
		logger:         logger,
		metrics:        metrics,
		ping:           deps.Ping,
		authHandler:    handlers.NewAuthHandler(deps.Auth, deps.Registry, deps.CookieSecure, logger),
		companyHandler: handlers.NewCompanyHandler(deps.Companies, logger),
		userHandler:    handlers.NewUserHandler(deps.Users, logger),
		templHandler:   handlers.NewTemplateHandler(deps.Catalog),
		docHandler:     handlers.NewDocumentHandler(deps.Documents, logger),
		exportHandler:  handlers.NewExportHandler(deps.Exports, deps.Companies, logger),
		wsHandler:      handlers.NewWorkspaceHandler(deps.Registry, deps.Companies, deps.Documents, deps.Exports, deps.Catalog, logger),
		signOffHandler: handlers.NewSignOffHandler(deps.SignOffs, deps.Exports, logger),
		eventsHandler:  handlers.NewEventsHandler(deps.Broker, logger),
		authMiddleware: middleware.NewAuthMiddleware(deps.Auth),
		reqMiddleware:  reqMiddleware,
		logMiddleware:  logMiddleware,
		publicLimiter:  middleware.NewIPRateLimiter(deps.SignOffRate, deps.SignOffBurst, logger),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.health)

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, r.metrics.Snapshot())
	})

	limited := r.publicLimiter.Limit()

	auth := r.engine.Group("/api/auth")
	{
		auth.POST("/register", limited, r.authHandler.Register)
		auth.POST("/login", limited, r.authHandler.Login)
		auth.POST("/logout", r.authHandler.Logout)
	}

	r.engine.GET("/sign-off/:id", limited, r.signOffHandler.ShowPage)
	r.engine.POST("/sign-off/:id", limited, r.signOffHandler.SubmitForm)

	public := r.engine.Group("/api/public/swms/:id", limited)
	{
		public.GET("", r.signOffHandler.GetDocument)
		public.POST("/sign-offs", r.signOffHandler.Submit)
		public.GET("/qr.png", r.signOffHandler.QRCode)
	}

	authorized := r.engine.Group("/api")
	authorized.Use(r.authMiddleware.RequireAuth())
	{
		authorized.GET("/me", r.userHandler.ShowProfile)
		authorized.PUT("/me", r.userHandler.UpdateProfile)
		authorized.GET("/users", r.userHandler.ListUsers)

		authorized.GET("/company", r.companyHandler.Get)
		authorized.PUT("/company", r.companyHandler.Update)

		authorized.GET("/templates", r.templHandler.List)
		authorized.GET("/templates/categories", r.templHandler.Categories)
		authorized.GET("/risk-levels", r.templHandler.RiskLevels)

		authorized.GET("/swms", r.docHandler.ListDocuments)
		authorized.GET("/swms/:id", r.docHandler.GetDocument)
		authorized.DELETE("/swms/:id", r.docHandler.DeleteDocument)
		authorized.GET("/swms/:id/sign-offs", r.docHandler.ListSignOffs)
		authorized.DELETE("/swms/:id/sign-offs/:signOffID", r.docHandler.DeleteSignOff)
		authorized.GET("/swms/:id/export.pdf", r.exportHandler.DocumentPDF)
		authorized.GET("/swms/:id/poster.png", r.exportHandler.PosterPNG)
		authorized.GET("/swms/:id/poster.pdf", r.exportHandler.PosterPDF)

		ws := authorized.Group("/workspace")
		ws.GET("", r.wsHandler.State)
		ws.POST("/new", r.wsHandler.StartNew)
		ws.POST("/edit/:id", r.wsHandler.StartEdit)
		ws.POST("/view/:id", r.wsHandler.Open)
		ws.POST("/cancel", r.wsHandler.Cancel)
		ws.POST("/reload", r.wsHandler.Reload)
		ws.DELETE("/documents/:id", r.wsHandler.DeleteDocument)
		ws.PATCH("/fields", r.wsHandler.UpdateFields)
		ws.PATCH("/company", r.wsHandler.UpdateCompany)
		ws.PATCH("/emergency", r.wsHandler.UpdateEmergency)
		ws.POST("/steps", r.wsHandler.AddSteps)
		ws.POST("/steps/custom", r.wsHandler.AddCustomStep)
		ws.PATCH("/steps/:stepID", r.wsHandler.UpdateStep)
		ws.DELETE("/steps/:stepID", r.wsHandler.RemoveStep)
		ws.POST("/sign-offs", r.wsHandler.AddSignOff)
		ws.PATCH("/sign-offs/:ref", r.wsHandler.UpdateSignOff)
		ws.DELETE("/sign-offs/:ref", r.wsHandler.RemoveSignOff)
		ws.POST("/save", r.wsHandler.Save)
		ws.GET("/export.pdf", r.wsHandler.ExportDraft)

		authorized.GET("/events", r.eventsHandler.Stream)
	}
}

func (r *Router) health(c *gin.Context) {
	status, code := "up", http.StatusOK
	if r.ping != nil {
		if err := r.ping(); err != nil {
			r.logger.Warn("Health check failed", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "name": "swms-manager"})
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
