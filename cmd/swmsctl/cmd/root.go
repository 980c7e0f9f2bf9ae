package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/swms-manager/internal/archive"
	"github.com/swms-manager/internal/catalog"
	"github.com/swms-manager/internal/config"
	"github.com/swms-manager/internal/db"
	"github.com/swms-manager/internal/render"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/pkg/logger"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type configLoader func(path string) (*config.Configuration, error)

// app opens its dependencies on first use so commands that only read the
// template catalog never touch the database.
type app struct {
	load       configLoader
	configPath string

	cfg     *config.Configuration
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
	db      *gorm.DB
	docs    *services.DocumentService
}

func (a *app) config() (*config.Configuration, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.load(a.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg, a.logger, a.metrics = cfg, log, metrics.NewMetricsCollector()
	return cfg, nil
}

func (a *app) database() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	conn, err := db.Initialize(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = conn
	return conn, nil
}

func (a *app) catalog() (*catalog.Catalog, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if cfg.Catalog.Path != "" {
		return catalog.NewFromFile(cfg.Catalog.Path, a.logger)
	}
	return catalog.New(a.logger)
}

func (a *app) documents() (*services.DocumentService, error) {
	if a.docs != nil {
		return a.docs, nil
	}
	conn, err := a.database()
	if err != nil {
		return nil, err
	}
	templates, err := a.catalog()
	if err != nil {
		return nil, err
	}
	// CLI changes are not broadcast; running servers pick them up on reload.
	a.docs = services.NewDocumentService(conn, nil, templates, a.logger, a.metrics)
	return a.docs, nil
}

func (a *app) exports(ctx context.Context) (*services.ExportService, *services.CompanyService, error) {
	docs, err := a.documents()
	if err != nil {
		return nil, nil, err
	}
	cfg := a.cfg
	store, err := archive.New(ctx, cfg.Archive, a.logger)
	if err != nil && !errors.Is(err, archive.ErrDisabled) {
		return nil, nil, err
	}
	qr := render.NewQRSource(cfg.Render.QRProvider, cfg.Render.QRServiceURL, cfg.Render.QRTimeout, a.logger)
	exports := services.NewExportService(docs, qr, cfg.Server.PublicOrigin, cfg.Render.QRSize, store, a.logger, a.metrics)
	return exports, services.NewCompanyService(a.db, a.logger), nil
}

func (a *app) close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// NewRootCommand creates the root command for the swmsctl application
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.LoadConfig)
}

func newRootCommand(load configLoader) *cobra.Command {
	a := &app{load: load}

	cmd := &cobra.Command{
		Use:   "swmsctl",
		Short: "Operator tools for the SWMS manager",
		Long: `swmsctl works directly against the SWMS manager database and template
catalog. It can list job step templates, export documents and QR posters,
and run the maintenance jobs the server schedules.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a JSON config file")

	cmd.AddCommand(newTemplatesCommand(a))
	cmd.AddCommand(newExportCommand(a))
	cmd.AddCommand(newMaintenanceCommand(a))
	return cmd
}
