package services

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swms-manager/internal/archive"
	"github.com/swms-manager/internal/render"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

func newExportService(t *testing.T, store archive.Store) (*ExportService, *DocumentService) {
	ds, _ := newDocumentService(t)
	es := NewExportService(ds, render.LocalQR{}, "https://swms.example", 200, store, zap.NewNop(), metrics.NewMetricsCollector())
	es.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return es, ds
}

func TestDocumentPDFIncludesStoredSignOffs(t *testing.T) {
	ctx := context.Background()
	es, ds := newExportService(t, nil)
	id, err := ds.InsertDocument(ctx, fitoutRecord("acme"))
	require.NoError(t, err)
	_, err = ds.InsertSignOffs(ctx, id, []swms.SignOff{{WorkerName: "Jo", SignedAt: time.Now()}})
	require.NoError(t, err)

	exp, err := es.DocumentPDF(ctx, swms.Company{ID: "acme", Name: "Acme"}, id)
	require.NoError(t, err)
	assert.Equal(t, "SWMS_Warehouse_Fitout_2024-03-01.pdf", exp.FileName)
	assert.Equal(t, ContentTypePDF, exp.ContentType)
	assert.True(t, bytes.HasPrefix(exp.Data, []byte("%PDF")))

	_, err = es.DocumentPDF(ctx, swms.Company{ID: "other"}, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPosterFormats(t *testing.T) {
	ctx := context.Background()
	es, ds := newExportService(t, nil)
	id, err := ds.InsertDocument(ctx, fitoutRecord("acme"))
	require.NoError(t, err)
	acme := swms.Company{ID: "acme", Name: "Acme"}

	png, err := es.Poster(ctx, acme, id, PosterPNG)
	require.NoError(t, err)
	assert.Equal(t, "QR_SignOff_Warehouse_Fitout.png", png.FileName)
	assert.Equal(t, ContentTypePNG, png.ContentType)

	pdf, err := es.Poster(ctx, acme, id, PosterPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Data, []byte("%PDF")))

	_, err = es.Poster(ctx, acme, id, "gif")
	assert.ErrorIs(t, err, swms.ErrValidation)
}

func TestQRCodeRequiresExistingDocument(t *testing.T) {
	ctx := context.Background()
	es, ds := newExportService(t, nil)

	_, err := es.QRCode(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := ds.InsertDocument(ctx, fitoutRecord("acme"))
	require.NoError(t, err)
	data, err := es.QRCode(ctx, id)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	exp := Export{FileName: "SWMS_A_2024-03-01.pdf", ContentType: ContentTypePDF, Data: []byte("%PDF")}

	disabled, _ := newExportService(t, nil)
	assert.False(t, disabled.ArchiveEnabled())
	_, err := disabled.Archive(ctx, "acme", exp)
	assert.ErrorIs(t, err, archive.ErrDisabled)

	store, err := archive.NewLocal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	es, _ := newExportService(t, store)
	loc, err := es.Archive(ctx, "acme", exp)
	require.NoError(t, err)
	assert.Contains(t, loc, "acme/2024/03/01/SWMS_A_2024-03-01.pdf")

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, exp.Data, data)
}
