package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swms-manager/internal/api"
	"github.com/swms-manager/internal/archive"
	"github.com/swms-manager/internal/catalog"
	"github.com/swms-manager/internal/config"
	"github.com/swms-manager/internal/db"
	"github.com/swms-manager/internal/db/models"
	"github.com/swms-manager/internal/jobs"
	"github.com/swms-manager/internal/realtime"
	"github.com/swms-manager/internal/render"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/workspace"
	"github.com/swms-manager/pkg/logger"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Initialize(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	sqlDB, err := database.DB()
	if err != nil {
		zapLogger.Fatal("Failed to access database handle", zap.Error(err))
	}

	metricsCollector := metrics.NewMetricsCollector()

	templates, err := loadCatalog(ctx, cfg.Catalog, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to load template catalog", zap.Error(err))
	}

	broker, err := newBroker(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to start change broker", zap.Error(err))
	}

	store, err := archive.New(ctx, cfg.Archive, zapLogger)
	if err != nil && !errors.Is(err, archive.ErrDisabled) {
		zapLogger.Fatal("Failed to initialize export archive", zap.Error(err))
	}

	documentService := services.NewDocumentService(database, broker, templates, zapLogger, metricsCollector)
	authService := services.NewAuthService(database, cfg.Security, zapLogger, metricsCollector)
	companyService := services.NewCompanyService(database, zapLogger)
	userService := services.NewUserService(database, zapLogger)
	signOffService := services.NewSignOffService(documentService, zapLogger, metricsCollector)
	qr := render.NewQRSource(cfg.Render.QRProvider, cfg.Render.QRServiceURL, cfg.Render.QRTimeout, zapLogger)
	exportService := services.NewExportService(documentService, qr, cfg.Server.PublicOrigin, cfg.Render.QRSize, store, zapLogger, metricsCollector)

	if cfg.Database.SeedDemo {
		if err := seedDatabase(ctx, database, authService, zapLogger); err != nil {
			zapLogger.Fatal("Failed to seed database", zap.Error(err))
		}
	}

	registry := workspace.NewRegistry(documentService, templates, zapLogger, metricsCollector)
	go registry.Run(ctx, broker)

	scheduler := jobs.NewScheduler(zapLogger, metricsCollector)
	if cfg.Jobs.Enabled {
		schedule := []struct {
			name string
			spec string
			fn   func(context.Context) error
		}{
			{"orphan_audit", cfg.Jobs.OrphanAudit, jobs.OrphanAudit(documentService, zapLogger, metricsCollector)},
			{"workspace_sweep", cfg.Jobs.WorkspaceSweep, jobs.WorkspaceSweep(registry, cfg.Workspace.IdleTTL, zapLogger)},
			{"session_cleanup", cfg.Jobs.SessionCleanup, jobs.SessionCleanup(authService, zapLogger)},
		}
		for _, job := range schedule {
			if err := scheduler.Add(job.name, job.spec, job.fn); err != nil {
				zapLogger.Fatal("Failed to schedule job", zap.String("job", job.name), zap.Error(err))
			}
		}
		scheduler.Start()
	}

	router := api.NewRouter(zapLogger, metricsCollector, api.Deps{
		Auth:         authService,
		Companies:    companyService,
		Users:        userService,
		Documents:    documentService,
		SignOffs:     signOffService,
		Exports:      exportService,
		Catalog:      templates,
		Registry:     registry,
		Broker:       broker,
		Ping:         sqlDB.Ping,
		CookieSecure: cfg.Security.CookieSecure,
		SignOffRate:  cfg.Security.SignOffRate,
		SignOffBurst: cfg.Security.SignOffBurst,
	})
	router.SetupRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("Server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// SSE streams only end once the broker closes.
	cancel()
	if err := broker.Close(); err != nil {
		zapLogger.Warn("Failed to close change broker", zap.Error(err))
	}
	if err := server.Shutdown(ctxShutdown); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if cfg.Jobs.Enabled {
		scheduler.Stop()
	}
	if err := sqlDB.Close(); err != nil {
		zapLogger.Warn("Failed to close database", zap.Error(err))
	}
	zapLogger.Info("Server gracefully stopped")
}

func loadCatalog(ctx context.Context, cfg config.CatalogConfig, logger *zap.Logger) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.New(logger)
	}
	c, err := catalog.NewFromFile(cfg.Path, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Watch {
		go func() {
			if err := c.Watch(ctx, cfg.Path); err != nil {
				logger.Error("Template catalog watcher stopped", zap.Error(err))
			}
		}()
	}
	return c, nil
}

func newBroker(ctx context.Context, cfg *config.Configuration, logger *zap.Logger) (realtime.Broker, error) {
	if cfg.Realtime.Broker != "redis" {
		return realtime.NewMemoryBroker(logger), nil
	}
	client, err := realtime.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
	if err != nil {
		return nil, err
	}
	return realtime.NewRedisBroker(ctx, client, cfg.Realtime.Channel, logger)
}

func seedDatabase(ctx context.Context, database *gorm.DB, auth *services.AuthService, logger *zap.Logger) error {
	var count int64
	if err := database.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Database already seeded, skipping")
		return nil
	}
	logger.Info("Seeding database with demo account")

	password := os.Getenv("DEMO_PASSWORD")
	if password == "" {
		password = "demo-password"
	}
	user, err := auth.Register(ctx, services.RegisterRequest{
		Email:       "demo@swms.local",
		Password:    password,
		FullName:    "Demo Supervisor",
		CompanyName: "Demo Constructions",
	})
	if err != nil {
		return err
	}
	logger.Info("Created demo account", zap.String("email", user.Email), zap.String("company_id", user.CompanyID))
	return nil
}
