package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swms-manager/internal/config"
	"github.com/swms-manager/internal/db"
	"github.com/swms-manager/internal/db/models"
	"github.com/swms-manager/internal/services"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

type fixture struct {
	cfg        *config.Configuration
	documentID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.InitializeDefaultConfig()
	cfg.Logging.Level = "production"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(dir, "swms.db")
	cfg.Render.QRProvider = "local"
	cfg.Server.PublicOrigin = "https://swms.example.com"
	cfg.Archive.Driver = "local"
	cfg.Archive.Dir = filepath.Join(dir, "archive")

	conn, err := db.Initialize(cfg, zap.NewNop())
	require.NoError(t, err)

	company := models.Company{Name: "Acme Builders", Color: "#dc2626"}
	require.NoError(t, conn.Create(&company).Error)

	docs := services.NewDocumentService(conn, nil, nil, zap.NewNop(), metrics.NewMetricsCollector())
	id, err := docs.InsertDocument(context.Background(), swms.Record{
		CompanyID:   company.ID,
		ProjectName: "Warehouse Fitout",
		Supervisor:  "Sam",
		Date:        "2024-03-01",
		JobSteps: []swms.JobStep{
			{ID: 1, Name: "Excavation", InitialRisk: swms.RiskExtreme, ResidualRisk: swms.RiskMedium},
		},
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	return &fixture{cfg: cfg, documentID: id}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(func(string) (*config.Configuration, error) { return f.cfg, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTemplatesList(t *testing.T) {
	f := &fixture{cfg: config.InitializeDefaultConfig()}
	f.cfg.Logging.Level = "production"

	out, err := f.run(t, "templates", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "KEY"))
	assert.Contains(t, out, "manual_handling")
	assert.Contains(t, out, "working_at_height")

	out, err = f.run(t, "templates", "list", "--category", "high risk")
	require.NoError(t, err)
	assert.Contains(t, out, "working_at_height")
	assert.NotContains(t, out, "manual_handling")

	out, err = f.run(t, "templates", "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "General (")
}

func TestExportPDFAndPoster(t *testing.T) {
	f := newFixture(t)
	outDir := t.TempDir()

	out, err := f.run(t, "export", "pdf", f.documentID, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote ")

	data, err := os.ReadFile(filepath.Join(outDir, "SWMS_Warehouse_Fitout_2024-03-01.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	out, err = f.run(t, "export", "poster", f.documentID, "--format", "png", "-o", outDir, "--archive")
	require.NoError(t, err)
	assert.Contains(t, out, "archived to ")
	_, err = os.Stat(filepath.Join(outDir, "QR_SignOff_Warehouse_Fitout.png"))
	assert.NoError(t, err)

	_, err = f.run(t, "export", "poster", f.documentID, "--format", "gif", "-o", outDir)
	assert.ErrorIs(t, err, swms.ErrValidation)
}

func TestExportUnknownDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "export", "pdf", "missing", "-o", t.TempDir())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestMaintenanceCommands(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "maintenance", "orphans")
	require.NoError(t, err)
	assert.Equal(t, "orphaned sign-offs: 0\n", out)

	out, err = f.run(t, "maintenance", "sessions")
	require.NoError(t, err)
	assert.Equal(t, "removed sessions: 0\n", out)
}
